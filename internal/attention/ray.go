package attention

import (
	"math"

	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/scene"
)

// RayEmitterConfig bounds the attention cone's half-angle.
type RayEmitterConfig struct {
	MinSpread float64 // radians, cone at full confidence
	MaxSpread float64 // radians, cone at zero confidence
}

// DefaultRayEmitterConfig returns the default spread bounds.
func DefaultRayEmitterConfig() RayEmitterConfig {
	return RayEmitterConfigFromTuning(config.EmptyTuningConfig())
}

// RayEmitterConfigFromTuning projects the spread fields of a TuningConfig.
func RayEmitterConfigFromTuning(t *config.TuningConfig) RayEmitterConfig {
	return RayEmitterConfig{
		MinSpread: t.GetMinConeSpread(),
		MaxSpread: t.GetMaxConeSpread(),
	}
}

// EmitRay derives the attention cone for a fixation. It is a pure
// function of its inputs so a cycle can be replayed from the fixation
// alone. Spread interpolates from MaxSpread at zero confidence down to
// MinSpread at full confidence: less confidence, wider cone. The axis is
// the default forward direction; use EmitRayWithDepth when a depth hint
// is available.
func EmitRay(f *gaze.Fixation, cfg RayEmitterConfig) scene.Ray {
	return EmitRayWithDepth(f, 0, cfg)
}

// EmitRayWithDepth derives the attention cone with a scene depth hint.
// A positive hint tilts the axis from the screen center through the
// fixation center at that depth; a zero or negative hint keeps the
// default forward axis.
func EmitRayWithDepth(f *gaze.Fixation, depthHint float64, cfg RayEmitterConfig) scene.Ray {
	conf := f.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	spread := cfg.MaxSpread + (cfg.MinSpread-cfg.MaxSpread)*conf

	dirX, dirY, dirZ := 0.0, 0.0, 1.0
	if depthHint > 0 {
		vx := f.CenterX - 0.5
		vy := f.CenterY - 0.5
		n := math.Sqrt(vx*vx + vy*vy + depthHint*depthHint)
		dirX, dirY, dirZ = vx/n, vy/n, depthHint/n
	}

	return scene.Ray{
		OriginX:    f.CenterX,
		OriginY:    f.CenterY,
		DirX:       dirX,
		DirY:       dirY,
		DirZ:       dirZ,
		Spread:     spread,
		Generation: f.Generation,
		DwellMs:    f.DwellMs(),
		Confidence: conf,
	}
}
