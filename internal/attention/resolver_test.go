package attention

import "testing"

func hyp(id string, p float64) FocusHypothesis {
	return FocusHypothesis{ObjectID: id, Probability: p, Generation: 1}
}

func resolverCfg() ResolverConfig {
	return ResolverConfig{DeferThreshold: 0.55, ConflictMargin: 0.05}
}

func TestResolveNoHypothesesIsAmbient(t *testing.T) {
	res := Resolve(1, nil, resolverCfg())
	if res.State != StateAmbient {
		t.Errorf("state = %v, want %v", res.State, StateAmbient)
	}
	if len(res.Publish) != 0 {
		t.Errorf("ambient resolution published %d hypotheses", len(res.Publish))
	}
}

func TestResolveBelowThresholdDefers(t *testing.T) {
	res := Resolve(1, []FocusHypothesis{hyp("a", 0.4), hyp("b", 0.3)}, resolverCfg())
	if res.State != StateDeferred {
		t.Errorf("state = %v, want %v", res.State, StateDeferred)
	}
	if len(res.Publish) != 0 {
		t.Error("deferred resolution published hypotheses")
	}
	// The full set stays observable on deferral.
	if len(res.Hypotheses) != 2 {
		t.Errorf("deferred resolution dropped hypotheses: %d", len(res.Hypotheses))
	}
}

// Two hypotheses at 0.81 and 0.80 with a 0.05 margin are ambiguous:
// Deferred, not Resolved.
func TestResolveConflictWithinMarginDefers(t *testing.T) {
	res := Resolve(1, []FocusHypothesis{hyp("a", 0.81), hyp("b", 0.80)}, resolverCfg())
	if res.State != StateDeferred {
		t.Errorf("state = %v, want %v", res.State, StateDeferred)
	}
	if len(res.Publish) != 0 {
		t.Error("ambiguous resolution published hypotheses")
	}
}

func TestResolveClearLeaderResolves(t *testing.T) {
	res := Resolve(7, []FocusHypothesis{hyp("a", 0.82), hyp("b", 0.60)}, resolverCfg())
	if res.State != StateResolved {
		t.Fatalf("state = %v, want %v", res.State, StateResolved)
	}
	if len(res.Publish) != 1 || res.Publish[0].ObjectID != "a" {
		t.Errorf("published = %+v, want leader a", res.Publish)
	}
	if res.Generation != 7 {
		t.Errorf("generation = %d, want 7", res.Generation)
	}
}

func TestResolveSingleQualifierResolves(t *testing.T) {
	res := Resolve(1, []FocusHypothesis{hyp("a", 0.7)}, resolverCfg())
	if res.State != StateResolved {
		t.Errorf("state = %v, want %v", res.State, StateResolved)
	}
}

// A runner-up below the defer threshold does not create a conflict even
// when it falls inside the margin.
func TestResolveSubThresholdRunnerUpNoConflict(t *testing.T) {
	cfg := ResolverConfig{DeferThreshold: 0.55, ConflictMargin: 0.2}
	res := Resolve(1, []FocusHypothesis{hyp("a", 0.6), hyp("b", 0.5)}, cfg)
	if res.State != StateResolved {
		t.Errorf("state = %v, want %v", res.State, StateResolved)
	}
}

// Each generation is independent: a deferral leaves nothing behind that
// could tip a later generation.
func TestResolveGenerationsIndependent(t *testing.T) {
	cfg := resolverCfg()
	for gen := uint64(1); gen <= 3; gen++ {
		res := Resolve(gen, []FocusHypothesis{hyp("a", 0.81), hyp("b", 0.80)}, cfg)
		if res.State != StateDeferred {
			t.Fatalf("generation %d state = %v, want deferred every time", gen, res.State)
		}
	}
	res := Resolve(4, []FocusHypothesis{hyp("a", 0.9)}, cfg)
	if res.State != StateResolved {
		t.Errorf("clean generation after deferrals = %v, want resolved", res.State)
	}
}

func TestScreenRegions(t *testing.T) {
	cases := []struct {
		x, y float64
		want string
	}{
		{0.1, 0.5, RegionLeftPanel},
		{0.9, 0.5, RegionRightPanel},
		{0.5, 0.1, RegionTopBar},
		{0.5, 0.9, RegionBottomPanel},
		{0.5, 0.5, RegionCenterArea},
	}
	for _, tc := range cases {
		if got := ScreenRegion(tc.x, tc.y); got != tc.want {
			t.Errorf("ScreenRegion(%v, %v) = %q, want %q", tc.x, tc.y, got, tc.want)
		}
	}
}
