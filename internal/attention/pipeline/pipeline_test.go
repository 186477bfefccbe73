package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/attention"
	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/scene"
)

type captureBridge struct {
	mu        sync.Mutex
	published []attention.FocusHypothesis
}

func (b *captureBridge) Publish(h attention.FocusHypothesis) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, h)
	return true
}

func (b *captureBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *captureBridge) last() (attention.FocusHypothesis, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) == 0 {
		return attention.FocusHypothesis{}, false
	}
	return b.published[len(b.published)-1], true
}

func newTestScene(t *testing.T, objs ...scene.Object) *scene.Scene {
	t.Helper()
	sc := scene.NewScene()
	for _, o := range objs {
		if err := sc.Upsert(o); err != nil {
			t.Fatalf("Upsert(%s): %v", o.ID, err)
		}
	}
	sc.Commit()
	return sc
}

func startPipeline(t *testing.T, sensorID string, sc *scene.Scene, patch *config.TuningConfig) (*Pipeline, *captureBridge) {
	t.Helper()
	store := config.NewStore(config.EmptyTuningConfig())
	if patch != nil {
		if err := store.Update(patch); err != nil {
			t.Fatalf("config update: %v", err)
		}
	}
	bridge := &captureBridge{}
	p := New(Options{
		SensorID: sensorID,
		Config:   store,
		Index:    sc,
		Bridge:   bridge,
	})
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	t.Cleanup(func() {
		cancel()
		p.Stop()
	})
	return p, bridge
}

// feedDwell offers a burst of near-stationary samples, stepMs apart.
func feedDwell(p *Pipeline, baseNanos int64, n int, stepMs int64, x, y, conf float64) {
	for i := 0; i < n; i++ {
		jitter := 0.004
		if i%2 == 0 {
			jitter = -jitter
		}
		p.Offer(gaze.GazeSample{
			TimestampNanos: baseNanos + int64(i)*stepMs*int64(time.Millisecond),
			X:              x + jitter,
			Y:              y,
			Confidence:     conf,
		})
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPipelineResolvesSingleSalientObject(t *testing.T) {
	sc := newTestScene(t, scene.Object{
		ID: "panel", MinX: 0.3, MinY: 0.3, MaxX: 0.7, MaxY: 0.7,
		Depth: 0.5, Salience: 1.0,
	})
	p, bridge := startPipeline(t, "e2e-single", sc, nil)

	feedDwell(p, time.Now().UnixNano(), 12, 60, 0.5, 0.5, 0.9)

	waitFor(t, 2*time.Second, func() bool { return bridge.count() > 0 },
		"no hypothesis published for a steady dwell on a lone object")

	h, _ := bridge.last()
	if h.ObjectID != "panel" {
		t.Errorf("published object = %q, want panel", h.ObjectID)
	}
	if h.Region != attention.RegionCenterArea {
		t.Errorf("region = %q, want %q", h.Region, attention.RegionCenterArea)
	}

	st := p.Status()
	if st.State != attention.StateResolved {
		t.Errorf("state = %q, want resolved", st.State)
	}
	if st.Counters.FixationsEmitted == 0 {
		t.Error("no fixation updates counted")
	}
}

func TestPipelineDefersBetweenTwinObjects(t *testing.T) {
	sc := newTestScene(t,
		scene.Object{ID: "left", MinX: 0.02, MinY: 0.2, MaxX: 0.48, MaxY: 0.8, Depth: 0.5, Salience: 0.9},
		scene.Object{ID: "right", MinX: 0.52, MinY: 0.2, MaxX: 0.98, MaxY: 0.8, Depth: 0.5, Salience: 0.9},
	)
	p, bridge := startPipeline(t, "e2e-twins", sc, nil)

	feedDwell(p, time.Now().UnixNano(), 14, 60, 0.5, 0.5, 0.9)

	waitFor(t, 2*time.Second, func() bool {
		return p.Status().Generation >= 2
	}, "no resolution cycles for a steady dwell between two objects")

	st := p.Status()
	if st.State != attention.StateDeferred {
		t.Errorf("state = %q, want deferred", st.State)
	}
	if len(st.Hypotheses) < 2 {
		t.Fatalf("expected coexisting hypotheses on deferral, got %d", len(st.Hypotheses))
	}
	if bridge.count() != 0 {
		t.Errorf("%d hypotheses published during deferral, want 0", bridge.count())
	}
}

func TestPipelineIdlePauseDiscardsFixation(t *testing.T) {
	idle := "150ms"
	sc := newTestScene(t, scene.Object{
		ID: "panel", MinX: 0.3, MinY: 0.3, MaxX: 0.7, MaxY: 0.7,
		Depth: 0.5, Salience: 1.0,
	})
	p, bridge := startPipeline(t, "e2e-idle", sc, &config.TuningConfig{
		SensorIdleTimeout: &idle,
	})

	// Partial dwell, then the stream goes quiet.
	feedDwell(p, time.Now().UnixNano(), 5, 60, 0.5, 0.5, 0.9)

	waitFor(t, 2*time.Second, func() bool { return p.Status().Paused },
		"pipeline did not pause after the sensor went idle")

	st := p.Status()
	if st.PauseReason != "idle" {
		t.Errorf("pause reason = %q, want idle", st.PauseReason)
	}
	if st.ActiveFixation != nil {
		t.Error("active fixation survived an idle pause")
	}
	if bridge.count() != 0 {
		t.Errorf("%d publishes from a dwell shorter than the minimum, want 0", bridge.count())
	}

	// A fresh sample resumes the pipeline; dwell restarts from scratch.
	p.Offer(gaze.GazeSample{
		TimestampNanos: time.Now().UnixNano(),
		X:              0.5, Y: 0.5, Confidence: 0.9,
	})
	waitFor(t, time.Second, func() bool { return !p.Status().Paused },
		"pipeline did not resume on a fresh sample")
}

func TestPipelineHeldPauseSurvivesIncomingSamples(t *testing.T) {
	sc := newTestScene(t, scene.Object{
		ID: "panel", MinX: 0.3, MinY: 0.3, MaxX: 0.7, MaxY: 0.7,
		Depth: 0.5, Salience: 1.0,
	})
	p, bridge := startPipeline(t, "e2e-held", sc, nil)

	// The host subsystem loses focus while the sensor keeps streaming.
	base := time.Now().UnixNano()
	p.Pause()
	feedDwell(p, base, 12, 60, 0.5, 0.5, 0.9)

	st := p.Status()
	if !st.Paused || st.PauseReason != "held" {
		t.Fatalf("status = paused %v reason %q, want held pause to survive samples", st.Paused, st.PauseReason)
	}
	if bridge.count() != 0 {
		t.Errorf("%d publishes while held paused, want 0", bridge.count())
	}

	// Only an explicit Resume ends a held pause.
	p.Resume()
	if p.Status().Paused {
		t.Error("pipeline still paused after Resume")
	}

	feedDwell(p, base+int64(2*time.Second), 12, 60, 0.5, 0.5, 0.9)
	waitFor(t, 2*time.Second, func() bool { return bridge.count() > 0 },
		"no publish after Resume")
}

func TestStageQueuesCountShedsSeparately(t *testing.T) {
	one := 1
	store := config.NewStore(&config.TuningConfig{
		FixationQueueSize:   &one,
		HypothesisQueueSize: &one,
	})
	p := New(Options{
		SensorID: "shed-count",
		Config:   store,
		Index:    scene.NewScene(),
		Bridge:   &captureBridge{},
	})
	// Not started: nothing consumes, so the second offer evicts the first.
	p.fixations.offer(&gaze.Fixation{Generation: 1})
	p.fixations.offer(&gaze.Fixation{Generation: 2})
	p.resolutions.offer(attention.Resolution{Generation: 1})
	p.resolutions.offer(attention.Resolution{Generation: 2})

	c := p.Counters().Snapshot()
	if c.FixationsShed != 1 {
		t.Errorf("FixationsShed = %d, want 1", c.FixationsShed)
	}
	if c.ResolutionsShed != 1 {
		t.Errorf("ResolutionsShed = %d, want 1", c.ResolutionsShed)
	}
	if c.SamplesShed != 0 {
		t.Errorf("SamplesShed = %d, want 0", c.SamplesShed)
	}
}

func TestPipelineResetClearsState(t *testing.T) {
	sc := newTestScene(t, scene.Object{
		ID: "panel", MinX: 0.3, MinY: 0.3, MaxX: 0.7, MaxY: 0.7,
		Depth: 0.5, Salience: 1.0,
	})
	p, bridge := startPipeline(t, "e2e-reset", sc, nil)

	feedDwell(p, time.Now().UnixNano(), 12, 60, 0.5, 0.5, 0.9)
	waitFor(t, 2*time.Second, func() bool { return bridge.count() > 0 },
		"no publish before reset")
	// Let the resolve stage drain every queued fixation so a straggling
	// cycle cannot overwrite the reset result.
	waitFor(t, 2*time.Second, func() bool {
		c := p.Counters().Snapshot()
		return c.Casts == c.FixationsEmitted
	}, "resolve stage did not drain")

	p.Reset()

	st := p.Status()
	if st.State != attention.StateAmbient {
		t.Errorf("state after reset = %q, want ambient", st.State)
	}
	if st.ActiveFixation != nil {
		t.Error("active fixation survived a reset")
	}
}

func TestPipelineStatusBeforeAnySample(t *testing.T) {
	sc := newTestScene(t)
	p, _ := startPipeline(t, "e2e-fresh", sc, nil)

	st := p.Status()
	if st.State != attention.StateAmbient {
		t.Errorf("initial state = %q, want ambient", st.State)
	}
	if st.Paused {
		t.Error("fresh pipeline reports paused")
	}
	if st.Hypotheses == nil || len(st.Hypotheses) != 0 {
		t.Errorf("initial hypotheses = %v, want empty slice", st.Hypotheses)
	}
}

func TestBoundedQueueShedsOldest(t *testing.T) {
	q := newBoundedQueue[int](2, nil)
	q.offer(1)
	q.offer(2)
	q.offer(3) // evicts 1

	if got := <-q.ch; got != 2 {
		t.Errorf("first = %d, want 2", got)
	}
	if got := <-q.ch; got != 3 {
		t.Errorf("second = %d, want 3", got)
	}
	if n := q.drain(); n != 0 {
		t.Errorf("drain() = %d, want 0", n)
	}
}
