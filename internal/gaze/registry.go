package gaze

import "sync"

// Per-sensor registries. The active-fixation map is the process-wide
// "exactly one active fixation per sensor stream" state; a new fixation
// replaces the previous entry atomically under the lock.
var (
	registryMu      = &sync.RWMutex{}
	detectorsByID   = map[string]*Detector{}
	activeFixations = map[string]*Fixation{}
)

// RegisterDetector registers a Detector for a sensor ID.
func RegisterDetector(sensorID string, d *Detector) {
	if sensorID == "" || d == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	detectorsByID[sensorID] = d
}

// GetDetector returns a registered Detector or nil.
func GetDetector(sensorID string) *Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return detectorsByID[sensorID]
}

// ActiveFixation returns a copy of the active fixation for a sensor, or
// nil when no fixation is active.
func ActiveFixation(sensorID string) *Fixation {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := activeFixations[sensorID]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

func setActiveFixation(f *Fixation) {
	registryMu.Lock()
	defer registryMu.Unlock()
	activeFixations[f.SensorID] = f
}

func clearActiveFixation(sensorID string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(activeFixations, sensorID)
}
