// Package gaze contains the sensor-facing half of the attention pipeline:
// sample normalization and fixation detection.
package gaze

import (
	"fmt"
	"math"
	"time"
)

// GazeSample is one normalized eye-tracking measurement. Coordinates are
// normalized screen space: (0,0) top-left, (1,1) bottom-right. Samples
// are immutable; the detector consumes and discards them.
type GazeSample struct {
	TimestampNanos int64   `json:"ts_nanos"` // monotonic nanoseconds
	X              float64 `json:"x"`        // [0, 1]
	Y              float64 `json:"y"`        // [0, 1]
	Confidence     float64 `json:"confidence"`
}

// Time returns the sample timestamp as a time.Duration offset suitable
// for dwell arithmetic.
func (s GazeSample) Time() time.Duration {
	return time.Duration(s.TimestampNanos)
}

// NewSample normalizes raw sensor values into a GazeSample. Coordinates
// are clamped into [0,1]; confidence is clamped into [0,1]; NaN or Inf
// anywhere, or a non-positive timestamp, rejects the sample.
func NewSample(tsNanos int64, x, y, confidence float64) (GazeSample, error) {
	if tsNanos <= 0 {
		return GazeSample{}, fmt.Errorf("sample timestamp must be positive, got %d", tsNanos)
	}
	for name, v := range map[string]float64{"x": x, "y": y, "confidence": confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return GazeSample{}, fmt.Errorf("sample %s is not finite: %v", name, v)
		}
	}
	return GazeSample{
		TimestampNanos: tsNanos,
		X:              clamp01(x),
		Y:              clamp01(y),
		Confidence:     clamp01(confidence),
	}, nil
}

// Fixation is a sustained low-motion gaze cluster. Exactly one fixation
// is active per sensor stream; a new fixation replaces it atomically.
type Fixation struct {
	ID         string        `json:"id"` // stable across updates of the same fixation
	SensorID   string        `json:"sensor_id"`
	CenterX    float64       `json:"center_x"`
	CenterY    float64       `json:"center_y"`
	Radius     float64       `json:"radius"`
	Dwell      time.Duration `json:"dwell"`
	Confidence float64       `json:"confidence"`

	// Generation increments on every emitted fixation update. Hypotheses
	// derived from an older generation are superseded, never merged.
	Generation uint64 `json:"generation"`

	StartNanos int64 `json:"start_nanos"` // timestamp of the first sample in the cluster
	LastNanos  int64 `json:"last_nanos"`  // timestamp of the most recent sample
}

// DwellMs returns the accumulated dwell in milliseconds.
func (f *Fixation) DwellMs() float64 {
	return float64(f.Dwell) / float64(time.Millisecond)
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
