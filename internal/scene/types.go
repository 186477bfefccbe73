// Package scene defines the attention pipeline's view of the compositor's
// scene graph: the ray/hit types, the read-only spatial query contract,
// and a snapshot-consistent BVH index that implements it.
package scene

import "context"

// Object is one indexed scene element. Bounds are an axis-aligned box in
// normalized screen space ((0,0) top-left, (1,1) bottom-right); Depth is
// the distance from the viewer plane in scene units (> 0, smaller is
// nearer). Salience is the externally supplied prominence weight.
type Object struct {
	ID       string  `json:"id"`
	MinX     float64 `json:"min_x"`
	MinY     float64 `json:"min_y"`
	MaxX     float64 `json:"max_x"`
	MaxY     float64 `json:"max_y"`
	Depth    float64 `json:"depth"`
	Salience float64 `json:"salience"`
}

// CenterX returns the horizontal center of the object bounds.
func (o Object) CenterX() float64 { return (o.MinX + o.MaxX) / 2 }

// CenterY returns the vertical center of the object bounds.
func (o Object) CenterY() float64 { return (o.MinY + o.MaxY) / 2 }

// Area returns the screen-space area of the object bounds.
func (o Object) Area() float64 {
	return (o.MaxX - o.MinX) * (o.MaxY - o.MinY)
}

// Ray is a directional attention cone derived from one fixation update.
// It is not persisted beyond a single pipeline cycle.
type Ray struct {
	OriginX float64 `json:"origin_x"` // fixation center
	OriginY float64 `json:"origin_y"`
	DirX    float64 `json:"dir_x"` // unit cone axis; +Z points into the scene
	DirY    float64 `json:"dir_y"`
	DirZ    float64 `json:"dir_z"`
	Spread  float64 `json:"spread"` // half-angle of the cone, radians

	// Fixation context carried along for the scorer.
	Generation uint64  `json:"generation"`
	DwellMs    float64 `json:"dwell_ms"`
	Confidence float64 `json:"confidence"`
}

// Hit is one candidate object intersected by a cone cast, scored before
// any attention weighting.
type Hit struct {
	ObjectID string  `json:"object_id"`
	Score    float64 `json:"score"`    // [0,1], degrades with angular offset from the cone axis
	Distance float64 `json:"distance"` // distance from the ray origin to the object center
	// Visibility is fractional: 1 fully visible, 0 fully occluded by
	// nearer geometry. Fully occluded hits keep a zero score but are not
	// removed from the sequence.
	Visibility float64 `json:"visibility"`
	Salience   float64 `json:"salience"` // copied from the object for downstream scoring
}

// Index is the read-only query contract the compositor's scene graph
// exposes to the pipeline. Implementations must give each call a
// consistent snapshot and must be side-effect-free; hits are returned
// most relevant first.
type Index interface {
	Query(ctx context.Context, ray Ray) ([]Hit, error)
}
