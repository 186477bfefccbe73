// Package attention converts fixations into probability-weighted focus
// hypotheses: cone emission, multi-factor scoring, and the three-state
// resolver that decides emit, defer, or ambient.
package attention

// FocusHypothesis is an independent probability-weighted belief that one
// object is the focus of attention. Probabilities across coexisting
// hypotheses are not a partition and need not sum to 1.
type FocusHypothesis struct {
	ObjectID    string  `json:"object_id"`
	Probability float64 `json:"probability"` // [0,1]

	// Generation ties the hypothesis to the fixation update that produced
	// it; an older generation is superseded, never merged.
	Generation uint64 `json:"generation"`
	FixationID string `json:"fixation_id"`

	// Region names the screen area of the producing fixation so the
	// scheduler can resolve deictic references ("delete that").
	Region string `json:"region"`

	CreatedNanos int64 `json:"created_nanos"`
}

// Screen region names, matching the vocabulary the intent parser expects.
const (
	RegionLeftPanel   = "left panel"
	RegionRightPanel  = "right panel"
	RegionTopBar      = "top bar"
	RegionBottomPanel = "bottom panel"
	RegionCenterArea  = "center area"
)

// ScreenRegion maps a normalized screen position to its named region.
// Horizontal bands win over vertical ones, matching the original mapping.
func ScreenRegion(x, y float64) string {
	switch {
	case x < 0.3:
		return RegionLeftPanel
	case x > 0.7:
		return RegionRightPanel
	case y < 0.3:
		return RegionTopBar
	case y > 0.7:
		return RegionBottomPanel
	default:
		return RegionCenterArea
	}
}
