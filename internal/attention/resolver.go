package attention

import (
	"github.com/NoodleSploder/RayOS-sub005/internal/config"
)

// State is the resolver's decision for one generation.
type State string

const (
	// StateAmbient means no object currently merits an attention
	// hypothesis.
	StateAmbient State = "ambient"
	// StateDeferred means hypotheses exist but confidence or agreement is
	// insufficient to publish; the policy is wait, not pick-winner.
	StateDeferred State = "deferred"
	// StateResolved means a clear leader met the publish threshold and is
	// forwarded.
	StateResolved State = "resolved"
)

// ResolverConfig holds the publish decision thresholds.
type ResolverConfig struct {
	// DeferThreshold is the minimum probability before anything may be
	// published.
	DeferThreshold float64
	// ConflictMargin is the probability gap within which two qualifying
	// hypotheses are considered ambiguous.
	ConflictMargin float64
}

// DefaultResolverConfig returns the default thresholds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfigFromTuning(config.EmptyTuningConfig())
}

// ResolverConfigFromTuning projects the resolver fields of a TuningConfig.
func ResolverConfigFromTuning(t *config.TuningConfig) ResolverConfig {
	return ResolverConfig{
		DeferThreshold: t.GetDeferThreshold(),
		ConflictMargin: t.GetConflictMargin(),
	}
}

// Resolution is the outcome for one generation. Hypotheses carries the
// full coexisting set (also on deferral, so an observer can inspect the
// ambiguity); Publish carries only what may reach the scheduler and is
// empty unless State is StateResolved.
type Resolution struct {
	State      State             `json:"state"`
	Generation uint64            `json:"generation"`
	Hypotheses []FocusHypothesis `json:"hypotheses"`
	Publish    []FocusHypothesis `json:"-"`
}

// Resolve evaluates one generation's hypothesis set. Every generation is
// judged independently: nothing accumulates across fixations.
//
// Rules, in order: no hypotheses is always ambient; a top probability
// below the defer threshold defers; two or more qualifying hypotheses
// within the conflict margin of the leader defer (ambiguous); otherwise
// the leader is resolved and forwarded.
func Resolve(generation uint64, hyps []FocusHypothesis, cfg ResolverConfig) Resolution {
	res := Resolution{Generation: generation, Hypotheses: hyps}

	if len(hyps) == 0 {
		res.State = StateAmbient
		return res
	}

	top := hyps[0]
	for _, h := range hyps[1:] {
		if h.Probability > top.Probability {
			top = h
		}
	}

	if top.Probability < cfg.DeferThreshold {
		res.State = StateDeferred
		return res
	}

	for _, h := range hyps {
		if h.ObjectID == top.ObjectID {
			continue
		}
		if h.Probability >= cfg.DeferThreshold &&
			top.Probability-h.Probability < cfg.ConflictMargin {
			res.State = StateDeferred
			return res
		}
	}

	res.State = StateResolved
	res.Publish = []FocusHypothesis{top}
	return res
}
