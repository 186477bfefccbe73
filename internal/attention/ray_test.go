package attention

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
)

func fixAt(x, y, conf float64) *gaze.Fixation {
	return &gaze.Fixation{
		ID: "fix-1", SensorID: "s", CenterX: x, CenterY: y,
		Radius: 0.05, Dwell: 600 * time.Millisecond,
		Confidence: conf, Generation: 3,
	}
}

// Spread is a monotonically non-increasing function of confidence.
func TestSpreadMonotoneInConfidence(t *testing.T) {
	cfg := DefaultRayEmitterConfig()

	prev := math.Inf(1)
	for conf := 0.0; conf <= 1.0001; conf += 0.05 {
		r := EmitRay(fixAt(0.5, 0.5, conf), cfg)
		if r.Spread > prev {
			t.Fatalf("spread increased with confidence: %v at conf %v", r.Spread, conf)
		}
		prev = r.Spread
	}

	if got := EmitRay(fixAt(0.5, 0.5, 0), cfg).Spread; got != cfg.MaxSpread {
		t.Errorf("zero-confidence spread = %v, want %v", got, cfg.MaxSpread)
	}
	if got := EmitRay(fixAt(0.5, 0.5, 1), cfg).Spread; got != cfg.MinSpread {
		t.Errorf("full-confidence spread = %v, want %v", got, cfg.MinSpread)
	}
}

func TestEmitRayIsPure(t *testing.T) {
	cfg := DefaultRayEmitterConfig()
	f := fixAt(0.3, 0.7, 0.8)

	a := EmitRay(f, cfg)
	b := EmitRay(f, cfg)
	if diff := cmp.Diff(a, b, cmpopts.EquateApprox(0, 0)); diff != "" {
		t.Errorf("EmitRay not deterministic (-first +second):\n%s", diff)
	}

	if a.OriginX != 0.3 || a.OriginY != 0.7 {
		t.Errorf("origin = (%v, %v), want fixation center", a.OriginX, a.OriginY)
	}
	if a.Generation != 3 {
		t.Errorf("generation = %d, want 3", a.Generation)
	}
	if a.DirX != 0 || a.DirY != 0 || a.DirZ != 1 {
		t.Errorf("default axis = (%v,%v,%v), want forward", a.DirX, a.DirY, a.DirZ)
	}
}

func TestEmitRayDepthHintTiltsAxis(t *testing.T) {
	cfg := DefaultRayEmitterConfig()
	r := EmitRayWithDepth(fixAt(0.9, 0.5, 0.8), 1.0, cfg)

	if r.DirX <= 0 {
		t.Errorf("axis should tilt toward a right-side fixation, DirX = %v", r.DirX)
	}
	n := math.Sqrt(r.DirX*r.DirX + r.DirY*r.DirY + r.DirZ*r.DirZ)
	if math.Abs(n-1) > 1e-9 {
		t.Errorf("axis not unit length: %v", n)
	}
}
