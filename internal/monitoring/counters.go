package monitoring

import "sync/atomic"

// PipelineCounters aggregates the observability counters the pipeline
// stages increment. All fields are atomic; a zero value is ready to use.
type PipelineCounters struct {
	SamplesIn        atomic.Uint64 // valid samples accepted from the sensor
	SamplesDropped   atomic.Uint64 // samples below the confidence floor or malformed
	SamplesShed      atomic.Uint64 // samples shed by a full sample queue (drop-oldest)
	FixationsShed    atomic.Uint64 // fixation updates shed by a full fixation queue
	ResolutionsShed  atomic.Uint64 // resolutions shed by a full resolution queue
	FixationsEmitted atomic.Uint64 // fixation create/update events emitted
	Casts            atomic.Uint64 // cone casts issued against the scene index
	CastFailures     atomic.Uint64 // scene queries that errored or timed out
	Generations      atomic.Uint64 // scored generations (one per fixation update)
	Publishes        atomic.Uint64 // hypotheses accepted by the intent queue
	PublishDrops     atomic.Uint64 // publish attempts rejected by a full/closed queue
}

// CountersSnapshot is a point-in-time copy of PipelineCounters, shaped
// for JSON responses.
type CountersSnapshot struct {
	SamplesIn        uint64 `json:"samples_in"`
	SamplesDropped   uint64 `json:"samples_dropped"`
	SamplesShed      uint64 `json:"samples_shed"`
	FixationsShed    uint64 `json:"fixations_shed"`
	ResolutionsShed  uint64 `json:"resolutions_shed"`
	FixationsEmitted uint64 `json:"fixations_emitted"`
	Casts            uint64 `json:"casts"`
	CastFailures     uint64 `json:"cast_failures"`
	Generations      uint64 `json:"generations"`
	Publishes        uint64 `json:"publishes"`
	PublishDrops     uint64 `json:"publish_drops"`
}

// Snapshot returns a copy of the current counter values.
func (c *PipelineCounters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		SamplesIn:        c.SamplesIn.Load(),
		SamplesDropped:   c.SamplesDropped.Load(),
		SamplesShed:      c.SamplesShed.Load(),
		FixationsShed:    c.FixationsShed.Load(),
		ResolutionsShed:  c.ResolutionsShed.Load(),
		FixationsEmitted: c.FixationsEmitted.Load(),
		Casts:            c.Casts.Load(),
		CastFailures:     c.CastFailures.Load(),
		Generations:      c.Generations.Load(),
		Publishes:        c.Publishes.Load(),
		PublishDrops:     c.PublishDrops.Load(),
	}
}
