package gaze

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/monitoring"
)

// SampleOutcome describes what the detector did with one sample.
type SampleOutcome string

const (
	// OutcomeDropped means the sample was below the confidence floor and
	// was discarded without touching EMA or dwell state.
	OutcomeDropped SampleOutcome = "dropped"
	// OutcomeStale means the sample timestamp was not after the previous
	// accepted sample and was discarded.
	OutcomeStale SampleOutcome = "stale"
	// OutcomeAccumulating means the sample extended the candidate cluster
	// but dwell has not yet reached the minimum.
	OutcomeAccumulating SampleOutcome = "accumulating"
	// OutcomeFixation means a fixation was emitted or updated.
	OutcomeFixation SampleOutcome = "fixation"
	// OutcomeMicroSaccade means the sample left the cluster radius but the
	// excursion is still within the micro-saccade window and was absorbed.
	OutcomeMicroSaccade SampleOutcome = "micro_saccade"
	// OutcomeSaccade means the excursion outlived the micro-saccade window;
	// dwell accounting restarted from this sample.
	OutcomeSaccade SampleOutcome = "saccade"
	// OutcomeConfidenceCollapse means sub-floor samples persisted past the
	// micro-saccade window while a fixation or candidate was active; the
	// fixation was destroyed and dwell restarts at the next valid sample.
	OutcomeConfidenceCollapse SampleOutcome = "confidence_collapse"
)

// DetectorConfig holds the fixation detector tuning values.
type DetectorConfig struct {
	SensorID           string
	MinDwell           time.Duration // dwell required before a fixation is emitted
	EMAAlpha           float64       // smoothing factor for the position estimate
	Radius             float64       // cluster radius in normalized units
	MicroSaccadeWindow time.Duration // excursions shorter than this are absorbed
	ConfidenceFloor    float64       // samples below this never reach the EMA
}

// DefaultDetectorConfig returns the detector defaults for a sensor.
func DefaultDetectorConfig(sensorID string) DetectorConfig {
	return DetectorConfigFromTuning(sensorID, config.EmptyTuningConfig())
}

// DetectorConfigFromTuning projects the relevant fields of a TuningConfig
// into a DetectorConfig.
func DetectorConfigFromTuning(sensorID string, t *config.TuningConfig) DetectorConfig {
	return DetectorConfig{
		SensorID:           sensorID,
		MinDwell:           t.GetMinDwell(),
		EMAAlpha:           t.GetEMAAlpha(),
		Radius:             t.GetFixationRadius(),
		MicroSaccadeWindow: t.GetMicroSaccadeWindow(),
		ConfidenceFloor:    t.GetConfidenceFloor(),
	}
}

// Detector turns an ordered stream of GazeSamples into fixation updates.
// It maintains an EMA position estimate; samples inside the cluster
// radius accumulate dwell, excursions shorter than the micro-saccade
// window are absorbed, and longer ones restart dwell accounting.
//
// Detector is safe for concurrent use, though the pipeline feeds it from
// a single stage goroutine.
type Detector struct {
	mu  sync.Mutex
	cfg DetectorConfig

	// Candidate cluster state
	haveCandidate  bool
	emaX, emaY     float64
	confEMA        float64
	startNanos     int64
	lastNanos      int64
	excursionStart int64 // nonzero while gaze is outside the radius
	dropStart      int64 // nonzero while sub-floor samples are arriving

	// Active fixation state
	fixationID string
	emitted    bool
	generation uint64
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	d := &Detector{cfg: cfg}
	RegisterDetector(cfg.SensorID, d)
	return d
}

// SetConfig swaps the detector tuning. In-flight candidate state is kept;
// the new thresholds apply from the next sample.
func (d *Detector) SetConfig(cfg DetectorConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg.SensorID = d.cfg.SensorID
	d.cfg = cfg
}

// Process consumes one sample and returns a fixation update when the
// cluster has accumulated enough dwell, or nil otherwise. At most one
// update is returned per sample.
func (d *Detector) Process(s GazeSample) (*Fixation, SampleOutcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.Confidence < d.cfg.ConfidenceFloor {
		// Noise samples stay inert, but a sustained run of them means
		// tracking has collapsed: the cluster no longer supports a
		// fixation. The micro-saccade window bounds the run, mirroring
		// excursion absorption.
		if d.haveCandidate {
			if d.dropStart == 0 {
				d.dropStart = s.TimestampNanos
			} else if time.Duration(s.TimestampNanos-d.dropStart) > d.cfg.MicroSaccadeWindow {
				d.destroyFixationLocked()
				d.haveCandidate = false
				d.dropStart = 0
				return nil, OutcomeConfidenceCollapse
			}
		}
		return nil, OutcomeDropped
	}
	d.dropStart = 0
	if d.haveCandidate && s.TimestampNanos <= d.lastNanos && d.excursionStart == 0 {
		return nil, OutcomeStale
	}

	if !d.haveCandidate {
		d.startCandidate(s)
		return nil, OutcomeAccumulating
	}

	dx := s.X - d.emaX
	dy := s.Y - d.emaY
	inside := dx*dx+dy*dy <= d.cfg.Radius*d.cfg.Radius

	if !inside {
		if d.excursionStart == 0 {
			d.excursionStart = s.TimestampNanos
			return nil, OutcomeMicroSaccade
		}
		if time.Duration(s.TimestampNanos-d.excursionStart) > d.cfg.MicroSaccadeWindow {
			// The excursion outlived the window: this is a real saccade.
			d.destroyFixationLocked()
			d.startCandidate(s)
			return nil, OutcomeSaccade
		}
		return nil, OutcomeMicroSaccade
	}

	if d.excursionStart != 0 {
		// Gaze returned inside the radius. Absorb the excursion only if it
		// was shorter than the micro-saccade window.
		if time.Duration(s.TimestampNanos-d.excursionStart) > d.cfg.MicroSaccadeWindow {
			d.destroyFixationLocked()
			d.startCandidate(s)
			return nil, OutcomeSaccade
		}
		d.excursionStart = 0
	}

	alpha := d.cfg.EMAAlpha
	d.emaX += alpha * (s.X - d.emaX)
	d.emaY += alpha * (s.Y - d.emaY)
	d.confEMA += alpha * (s.Confidence - d.confEMA)
	d.lastNanos = s.TimestampNanos

	dwell := time.Duration(d.lastNanos - d.startNanos)
	if dwell < d.cfg.MinDwell {
		return nil, OutcomeAccumulating
	}

	if !d.emitted {
		d.fixationID = uuid.NewString()
		d.emitted = true
		monitoring.Debugf("gaze: fixation %s started at (%.3f, %.3f) sensor=%s",
			d.fixationID, d.emaX, d.emaY, d.cfg.SensorID)
	}
	d.generation++

	fix := &Fixation{
		ID:         d.fixationID,
		SensorID:   d.cfg.SensorID,
		CenterX:    d.emaX,
		CenterY:    d.emaY,
		Radius:     d.cfg.Radius,
		Dwell:      dwell,
		Confidence: d.confEMA,
		Generation: d.generation,
		StartNanos: d.startNanos,
		LastNanos:  d.lastNanos,
	}
	setActiveFixation(fix)
	return fix, OutcomeFixation
}

// Reset discards the candidate cluster and the active fixation. Used when
// the sensor stream is interrupted or the pipeline is paused; dwell
// accumulation restarts from the next valid sample. The generation
// counter is not reset so later fixations still supersede earlier ones.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyFixationLocked()
	d.haveCandidate = false
	d.excursionStart = 0
	d.dropStart = 0
}

// Generation returns the generation of the most recent fixation update.
func (d *Detector) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

func (d *Detector) startCandidate(s GazeSample) {
	d.haveCandidate = true
	d.emaX = s.X
	d.emaY = s.Y
	d.confEMA = s.Confidence
	d.startNanos = s.TimestampNanos
	d.lastNanos = s.TimestampNanos
	d.excursionStart = 0
	d.dropStart = 0
	d.emitted = false
	d.fixationID = ""
}

func (d *Detector) destroyFixationLocked() {
	if d.emitted {
		monitoring.Debugf("gaze: fixation %s destroyed sensor=%s", d.fixationID, d.cfg.SensorID)
	}
	d.emitted = false
	d.fixationID = ""
	clearActiveFixation(d.cfg.SensorID)
}
