// Package pipeline wires the attention stages into a sequence of bounded
// producer/consumer hand-offs: detect, cast+score+resolve, publish. A
// slow downstream stage sheds old work instead of backing up upstream.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/attention"
	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/monitoring"
	"github.com/NoodleSploder/RayOS-sub005/internal/scene"
)

// Publisher is the scheduler-facing publish contract: non-blocking,
// best-effort, returns false when the intent queue refused the
// hypothesis.
type Publisher interface {
	Publish(h attention.FocusHypothesis) bool
}

// Recorder receives pipeline outcomes for persistence/observability.
// Calls must be cheap; errors are the recorder's problem.
type Recorder interface {
	RecordFixation(f *gaze.Fixation)
	RecordResolution(res attention.Resolution)
	RecordPublish(h attention.FocusHypothesis, accepted bool)
}

// Pause reasons. An idle pause ends as soon as the sensor speaks again;
// a held pause sticks until Resume even though the sensor may keep
// streaming, as when the host subsystem loses focus.
const (
	pauseNone int32 = iota
	pauseIdle
	pauseHeld
)

// Status is a point-in-time view of the pipeline for the API surface.
type Status struct {
	SensorID       string                      `json:"sensor_id"`
	Paused         bool                        `json:"paused"`
	PauseReason    string                      `json:"pause_reason,omitempty"`
	State          attention.State             `json:"state"`
	Generation     uint64                      `json:"generation"`
	ActiveFixation *gaze.Fixation              `json:"active_fixation,omitempty"`
	Hypotheses     []attention.FocusHypothesis `json:"hypotheses"`
	Counters       monitoring.CountersSnapshot `json:"counters"`
}

// Pipeline owns the stage goroutines and the queues between them.
type Pipeline struct {
	sensorID string
	cfg      *config.Store

	detector *gaze.Detector
	engine   *scene.Engine
	scorer   *attention.Scorer
	bridge   Publisher
	recorder Recorder
	counters *monitoring.PipelineCounters

	samples     *boundedQueue[gaze.GazeSample]
	fixations   *boundedQueue[*gaze.Fixation]
	resolutions *boundedQueue[attention.Resolution]

	pause      atomic.Int32
	lastResult atomic.Pointer[attention.Resolution]
	lastSample atomic.Int64 // wall-clock nanos of the last accepted sample

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex // guards Start/Stop
}

// Options carries the external collaborators.
type Options struct {
	SensorID string
	Config   *config.Store
	Index    scene.Index
	Bridge   Publisher
	Recorder Recorder // optional
	Counters *monitoring.PipelineCounters
}

// New assembles a pipeline. Queue sizes are taken from the config at
// construction; the tuning thresholds themselves follow every later
// config update without a restart.
func New(opts Options) *Pipeline {
	if opts.Counters == nil {
		opts.Counters = &monitoring.PipelineCounters{}
	}
	cur := opts.Config.Current()

	p := &Pipeline{
		sensorID: opts.SensorID,
		cfg:      opts.Config,
		detector: gaze.NewDetector(gaze.DetectorConfigFromTuning(opts.SensorID, cur)),
		engine: scene.NewEngine(opts.Index, scene.EngineConfig{
			QueryTimeout: cur.GetQueryTimeout(),
			MaxHits:      cur.GetMaxHypotheses() * 4,
		}),
		scorer:      attention.NewScorer(attention.ScorerConfigFromTuning(cur), nil),
		bridge:      opts.Bridge,
		recorder:    opts.Recorder,
		counters:    opts.Counters,
		samples:     newBoundedQueue[gaze.GazeSample](cur.GetSampleQueueSize(), &opts.Counters.SamplesShed),
		fixations:   newBoundedQueue[*gaze.Fixation](cur.GetFixationQueueSize(), &opts.Counters.FixationsShed),
		resolutions: newBoundedQueue[attention.Resolution](cur.GetHypothesisQueueSize(), &opts.Counters.ResolutionsShed),
	}

	opts.Config.OnUpdate(p.applyConfig)
	return p
}

// SetContextProvider installs a context/mode alignment source for the
// scorer. Safe to call before Start.
func (p *Pipeline) SetContextProvider(cp attention.ContextProvider) {
	cur := p.cfg.Current()
	p.scorer = attention.NewScorer(attention.ScorerConfigFromTuning(cur), cp)
}

// applyConfig pushes a hot-reloaded tuning config into the live stages.
func (p *Pipeline) applyConfig(cur *config.TuningConfig) {
	p.detector.SetConfig(gaze.DetectorConfigFromTuning(p.sensorID, cur))
	p.scorer.SetConfig(attention.ScorerConfigFromTuning(cur))
	p.engine.SetConfig(scene.EngineConfig{
		QueryTimeout: cur.GetQueryTimeout(),
		MaxHits:      cur.GetMaxHypotheses() * 4,
	})
	monitoring.Logf("pipeline: tuning config applied sensor=%s", p.sensorID)
}

// Start launches the stage goroutines. The pipeline stops when ctx is
// cancelled; Start returns immediately.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(3)
	go p.detectStage(ctx)
	go p.resolveStage(ctx)
	go p.publishStage(ctx)

	p.wg.Add(1)
	go p.idleWatchdog(ctx)
}

// Stop cancels the stages and waits for them to exit.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

// Offer hands one sensor sample to the pipeline. It never blocks; under
// load the oldest pending sample is shed.
func (p *Pipeline) Offer(s gaze.GazeSample) {
	p.lastSample.Store(time.Now().UnixNano())
	// Stream resumed after idle: continue cleanly, dwell restarts from
	// this sample because the pause reset the detector. A held pause is
	// left alone; the sensor keeps streaming while the host is unfocused.
	if p.pause.Load() == pauseIdle && p.pause.CompareAndSwap(pauseIdle, pauseNone) {
		monitoring.Logf("pipeline: resumed sensor=%s", p.sensorID)
	}
	p.samples.offer(s)
}

// Pause discards the active fixation and all in-flight work and stops
// emitting hypotheses until Resume. Used when the host subsystem loses
// focus; incoming samples do not undo it.
func (p *Pipeline) Pause() {
	p.pauseWith(pauseHeld)
}

func (p *Pipeline) pauseWith(reason int32) {
	for {
		prev := p.pause.Load()
		// A held pause is never downgraded by the idle watchdog.
		if prev == reason || (prev == pauseHeld && reason == pauseIdle) {
			return
		}
		if p.pause.CompareAndSwap(prev, reason) {
			if prev == pauseNone {
				p.resetState()
				monitoring.Logf("pipeline: paused sensor=%s", p.sensorID)
			}
			return
		}
	}
}

// Resume re-enables processing after a Pause of either kind.
func (p *Pipeline) Resume() {
	if p.pause.Swap(pauseNone) == pauseNone {
		return
	}
	monitoring.Logf("pipeline: resumed sensor=%s", p.sensorID)
}

// Reset discards fixation state, the recency ledger, and everything
// queued, without pausing.
func (p *Pipeline) Reset() {
	p.resetState()
}

func (p *Pipeline) resetState() {
	p.detector.Reset()
	p.scorer.ResetRecency()
	p.samples.drain()
	p.fixations.drain()
	p.resolutions.drain()
	p.lastResult.Store(&attention.Resolution{State: attention.StateAmbient})
}

// Status reports the pipeline's current externally observable state.
func (p *Pipeline) Status() Status {
	st := Status{
		SensorID:   p.sensorID,
		State:      attention.StateAmbient,
		Counters:   p.counters.Snapshot(),
		Hypotheses: []attention.FocusHypothesis{},
	}
	switch p.pause.Load() {
	case pauseIdle:
		st.Paused, st.PauseReason = true, "idle"
	case pauseHeld:
		st.Paused, st.PauseReason = true, "held"
	}
	if res := p.lastResult.Load(); res != nil {
		st.State = res.State
		st.Generation = res.Generation
		if res.Hypotheses != nil {
			st.Hypotheses = res.Hypotheses
		}
	}
	st.ActiveFixation = gaze.ActiveFixation(p.sensorID)
	return st
}

// Counters exposes the pipeline counter set.
func (p *Pipeline) Counters() *monitoring.PipelineCounters { return p.counters }

// detectStage feeds samples through the fixation detector.
func (p *Pipeline) detectStage(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.samples.ch:
			if p.pause.Load() != pauseNone {
				continue
			}
			fix, outcome := p.detector.Process(s)
			switch outcome {
			case gaze.OutcomeDropped, gaze.OutcomeStale, gaze.OutcomeConfidenceCollapse:
				p.counters.SamplesDropped.Add(1)
				continue
			default:
				p.counters.SamplesIn.Add(1)
			}
			if fix != nil {
				p.counters.FixationsEmitted.Add(1)
				if p.recorder != nil {
					p.recorder.RecordFixation(fix)
				}
				p.fixations.offer(fix)
			}
		}
	}
}

// resolveStage runs one full cast/score/resolve cycle per fixation
// update.
func (p *Pipeline) resolveStage(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fix := <-p.fixations.ch:
			if p.pause.Load() != pauseNone {
				continue
			}
			p.runCycle(ctx, fix)
		}
	}
}

func (p *Pipeline) runCycle(ctx context.Context, fix *gaze.Fixation) {
	cur := p.cfg.Current()
	ray := attention.EmitRay(fix, attention.RayEmitterConfigFromTuning(cur))

	p.counters.Casts.Add(1)
	hits, err := p.engine.Cast(ctx, ray)
	if err != nil {
		// Degrades to ambient for this generation; never fatal.
		p.counters.CastFailures.Add(1)
		monitoring.Logf("pipeline: scene query failed gen=%d: %v", fix.Generation, err)
		hits = nil
	}

	hyps := p.scorer.Score(fix, hits, time.Now().UnixNano())
	p.counters.Generations.Add(1)

	res := attention.Resolve(fix.Generation, hyps, attention.ResolverConfigFromTuning(cur))
	p.lastResult.Store(&res)
	if p.recorder != nil {
		p.recorder.RecordResolution(res)
	}
	if res.State == attention.StateResolved {
		p.resolutions.offer(res)
	}
}

// publishStage forwards resolved hypotheses to the scheduler bridge. A
// resolution older than one already seen is stale and skipped: a
// superseding generation has already passed this point.
func (p *Pipeline) publishStage(ctx context.Context) {
	defer p.wg.Done()
	var maxGen uint64
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-p.resolutions.ch:
			if res.Generation < maxGen {
				continue
			}
			maxGen = res.Generation
			for _, h := range res.Publish {
				accepted := p.bridge.Publish(h)
				if accepted {
					p.counters.Publishes.Add(1)
				} else {
					p.counters.PublishDrops.Add(1)
				}
				if p.recorder != nil {
					p.recorder.RecordPublish(h, accepted)
				}
			}
		}
	}
}

// idleWatchdog pauses the pipeline when the sensor goes quiet for longer
// than the configured idle timeout.
func (p *Pipeline) idleWatchdog(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.pause.Load() != pauseNone {
				continue
			}
			last := p.lastSample.Load()
			if last == 0 {
				continue
			}
			idle := time.Duration(time.Now().UnixNano() - last)
			if idle > p.cfg.Current().GetSensorIdleTimeout() {
				monitoring.Logf("pipeline: sensor idle for %v, pausing sensor=%s", idle, p.sensorID)
				p.pauseWith(pauseIdle)
			}
		}
	}
}
