package attention

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/scene"
)

// dwellSaturation is the dwell beyond which longer staring adds nothing.
const dwellSaturationMs = 1500.0

// ContextProvider supplies the current context/mode alignment for an
// object: 1 when attending the object fits the active mode, 0 when it
// does not. A nil provider scores every object neutrally at 0.5.
type ContextProvider interface {
	Alignment(objectID string) float64
}

// ScorerConfig holds the hypothesis scoring weights and limits.
type ScorerConfig struct {
	MaxHypotheses int
	// DecayRate is the retained fraction of recency weight per second.
	DecayRate float64

	WeightGeometry float64
	WeightDwell    float64
	WeightSalience float64
	WeightRecency  float64
	WeightContext  float64
}

// DefaultScorerConfig returns the default weights.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfigFromTuning(config.EmptyTuningConfig())
}

// ScorerConfigFromTuning projects the scoring fields of a TuningConfig.
func ScorerConfigFromTuning(t *config.TuningConfig) ScorerConfig {
	return ScorerConfig{
		MaxHypotheses:  t.GetMaxHypotheses(),
		DecayRate:      t.GetRecencyDecayRate(),
		WeightGeometry: t.GetWeightGeometry(),
		WeightDwell:    t.GetWeightDwell(),
		WeightSalience: t.GetWeightSalience(),
		WeightRecency:  t.GetWeightRecency(),
		WeightContext:  t.GetWeightContext(),
	}
}

type recencyEntry struct {
	weight    float64
	lastNanos int64
}

// Scorer combines cone-cast geometry with dwell, salience, recency and
// context alignment into probability-weighted hypotheses. The recency
// ledger is the only state carried across generations.
type Scorer struct {
	mu      sync.Mutex
	cfg     ScorerConfig
	ctx     ContextProvider
	recency map[string]recencyEntry
}

// NewScorer creates a Scorer. ctx may be nil.
func NewScorer(cfg ScorerConfig, ctx ContextProvider) *Scorer {
	if cfg.MaxHypotheses <= 0 {
		cfg.MaxHypotheses = DefaultScorerConfig().MaxHypotheses
	}
	return &Scorer{cfg: cfg, ctx: ctx, recency: map[string]recencyEntry{}}
}

// SetConfig swaps the scoring weights. Applies from the next generation.
func (s *Scorer) SetConfig(cfg ScorerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.MaxHypotheses > 0 {
		s.cfg = cfg
	}
}

// Score produces at most MaxHypotheses hypotheses for one generation,
// ordered by probability descending. Probabilities are independent
// beliefs clamped to [0,1], not a partition.
func (s *Scorer) Score(fix *gaze.Fixation, hits []scene.Hit, nowNanos int64) []FocusHypothesis {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(hits) == 0 {
		return nil
	}

	cfg := s.cfg
	// Factor weights are normalized so a hot-reloaded partial weight set
	// cannot push probabilities past 1 on its own.
	wsum := floats.Sum([]float64{
		cfg.WeightGeometry, cfg.WeightDwell, cfg.WeightSalience,
		cfg.WeightRecency, cfg.WeightContext,
	})
	if wsum <= 0 {
		return nil
	}

	dwellFactor := math.Min(1, fix.DwellMs()/dwellSaturationMs)
	region := ScreenRegion(fix.CenterX, fix.CenterY)

	out := make([]FocusHypothesis, 0, len(hits))
	for _, h := range hits {
		contextAlignment := 0.5
		if s.ctx != nil {
			contextAlignment = clamp01(s.ctx.Alignment(h.ObjectID))
		}

		p := (cfg.WeightGeometry*h.Score +
			cfg.WeightDwell*dwellFactor +
			cfg.WeightSalience*h.Salience +
			cfg.WeightRecency*s.decayedRecency(h.ObjectID, nowNanos) +
			cfg.WeightContext*contextAlignment) / wsum

		out = append(out, FocusHypothesis{
			ObjectID:     h.ObjectID,
			Probability:  clamp01(p),
			Generation:   fix.Generation,
			FixationID:   fix.ID,
			Region:       region,
			CreatedNanos: nowNanos,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if len(out) > cfg.MaxHypotheses {
		out = out[:cfg.MaxHypotheses]
	}

	// Remember what was attended to: recency feeds the next generation so
	// recently attended objects are favored without fully discounting a
	// genuinely new strong hit.
	for _, h := range out {
		prev := s.decayedRecency(h.ObjectID, nowNanos)
		w := math.Max(prev, h.Probability)
		s.recency[h.ObjectID] = recencyEntry{weight: w, lastNanos: nowNanos}
	}
	s.pruneRecency(nowNanos)

	return out
}

// ResetRecency clears the recency ledger, e.g. on pipeline reset.
func (s *Scorer) ResetRecency() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recency = map[string]recencyEntry{}
}

func (s *Scorer) decayedRecency(objectID string, nowNanos int64) float64 {
	e, ok := s.recency[objectID]
	if !ok {
		return 0
	}
	dt := float64(nowNanos-e.lastNanos) / 1e9
	if dt < 0 {
		dt = 0
	}
	return e.weight * math.Pow(s.cfg.DecayRate, dt)
}

// pruneRecency drops entries decayed below noise so the ledger stays
// bounded by the set of recently attended objects.
func (s *Scorer) pruneRecency(nowNanos int64) {
	const noiseFloor = 0.01
	for id := range s.recency {
		if s.decayedRecency(id, nowNanos) < noiseFloor {
			delete(s.recency, id)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
