package scene

import (
	"context"
	"math"
	"sort"
)

// bvhLeafSize is the maximum object count per leaf node.
const bvhLeafSize = 4

// fullyOccludedScore is the residual score a fully occluded hit keeps so
// it stays in the sequence without competing with visible candidates.
const fullyOccludedScore = 0.0

type bvhNode struct {
	minX, minY, maxX, maxY float64
	maxDepth               float64 // deepest object under this node
	maxAngular             float64 // widest object angular radius under this node

	left, right int32 // child indices; -1 for leaves
	start, n    int32 // leaf object range into Snapshot.objects
}

// Snapshot is an immutable bounding-volume hierarchy over a committed
// object set. It implements Index; one Snapshot serves any number of
// concurrent queries.
type Snapshot struct {
	Version uint64

	objects []Object
	nodes   []bvhNode
}

func buildSnapshot(objs []Object, version uint64) *Snapshot {
	s := &Snapshot{Version: version, objects: objs}
	if len(objs) == 0 {
		return s
	}
	s.nodes = make([]bvhNode, 0, 2*len(objs))
	s.build(0, len(objs))
	return s
}

// build constructs the node for objects[start:end) and returns its index.
// Children are built depth-first; objects are partitioned in place by a
// median split on the longer screen axis.
func (s *Snapshot) build(start, end int) int32 {
	idx := int32(len(s.nodes))
	s.nodes = append(s.nodes, bvhNode{left: -1, right: -1})

	n := &s.nodes[idx]
	n.minX, n.minY = math.Inf(1), math.Inf(1)
	n.maxX, n.maxY = math.Inf(-1), math.Inf(-1)
	for i := start; i < end; i++ {
		o := s.objects[i]
		n.minX = math.Min(n.minX, o.MinX)
		n.minY = math.Min(n.minY, o.MinY)
		n.maxX = math.Max(n.maxX, o.MaxX)
		n.maxY = math.Max(n.maxY, o.MaxY)
		n.maxDepth = math.Max(n.maxDepth, o.Depth)
		n.maxAngular = math.Max(n.maxAngular, objectAngularRadius(o))
	}

	if end-start <= bvhLeafSize {
		n.start = int32(start)
		n.n = int32(end - start)
		return idx
	}

	byX := n.maxX-n.minX >= n.maxY-n.minY
	sub := s.objects[start:end]
	sort.Slice(sub, func(i, j int) bool {
		if byX {
			return sub[i].CenterX() < sub[j].CenterX()
		}
		return sub[i].CenterY() < sub[j].CenterY()
	})

	mid := start + (end-start)/2
	left := s.build(start, mid)
	right := s.build(mid, end)
	// Re-take the pointer: build() may have grown s.nodes.
	s.nodes[idx].left = left
	s.nodes[idx].right = right
	return idx
}

// objectAngularRadius approximates the half-angle an object subtends when
// looked at head-on: the half-diagonal of its bounds over its depth.
func objectAngularRadius(o Object) float64 {
	halfDiag := math.Hypot(o.MaxX-o.MinX, o.MaxY-o.MinY) / 2
	return math.Atan2(halfDiag, o.Depth)
}

// Query casts the cone against the snapshot and returns hits ordered by
// score descending. An empty snapshot always returns an empty sequence.
// The context is checked between node visits so a deadline cannot be
// overrun by more than one leaf scan.
func (s *Snapshot) Query(ctx context.Context, ray Ray) ([]Hit, error) {
	if len(s.objects) == 0 {
		return nil, nil
	}

	axisTilt := math.Acos(clampUnit(ray.DirZ)) // angle between the cone axis and forward

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++

	hits := make([]Hit, 0, len(s.objects))
	for sp > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sp--
		n := &s.nodes[stack[sp]]

		// Conservative prune: the smallest possible angular offset of
		// anything under this node is the angle to the nearest point of
		// its screen bounds at its deepest extent, reduced by the axis
		// tilt. If even that exceeds the widened cone, skip the subtree.
		dmin := rectDistance(ray.OriginX, ray.OriginY, n.minX, n.minY, n.maxX, n.maxY)
		minOffset := math.Atan2(dmin, n.maxDepth) - axisTilt
		if minOffset > ray.Spread+n.maxAngular {
			continue
		}

		if n.left < 0 {
			for i := n.start; i < n.start+n.n; i++ {
				if h, ok := s.scoreObject(ray, s.objects[i]); ok {
					hits = append(hits, h)
				}
			}
			continue
		}
		stack[sp] = n.left
		sp++
		stack[sp] = n.right
		sp++
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Distance < hits[j].Distance
	})
	return hits, nil
}

// scoreObject tests one object against the cone. The returned hit score
// decreases monotonically with angular offset from the cone axis, is
// attenuated by distance, and is scaled by fractional visibility.
func (s *Snapshot) scoreObject(ray Ray, o Object) (Hit, bool) {
	vx := o.CenterX() - ray.OriginX
	vy := o.CenterY() - ray.OriginY
	vz := o.Depth
	dist := math.Sqrt(vx*vx + vy*vy + vz*vz)
	if dist == 0 {
		return Hit{}, false
	}

	cos := (vx*ray.DirX + vy*ray.DirY + vz*ray.DirZ) / dist
	offset := math.Acos(clampUnit(cos))

	reach := ray.Spread + objectAngularRadius(o)
	if offset > reach {
		return Hit{}, false
	}

	angular := 1 - offset/reach
	visibility := s.visibility(o)

	score := angular * (1 / (1 + dist)) * visibility
	if visibility == 0 {
		score = fullyOccludedScore
	}
	return Hit{
		ObjectID:   o.ID,
		Score:      clampUnit(score),
		Distance:   dist,
		Visibility: visibility,
		Salience:   o.Salience,
	}, true
}

// visibility returns the fraction of the object not covered by any
// single nearer object. Overlap is measured in screen projection; the
// strongest occluder wins rather than summing, which is cheap and close
// enough for UI-scale scenes.
func (s *Snapshot) visibility(o Object) float64 {
	area := o.Area()
	if area <= 0 {
		return 1
	}
	covered := 0.0
	for _, p := range s.objects {
		if p.ID == o.ID || p.Depth >= o.Depth {
			continue
		}
		w := math.Min(o.MaxX, p.MaxX) - math.Max(o.MinX, p.MinX)
		h := math.Min(o.MaxY, p.MaxY) - math.Max(o.MinY, p.MinY)
		if w <= 0 || h <= 0 {
			continue
		}
		covered = math.Max(covered, (w*h)/area)
	}
	v := 1 - covered
	if v < 0 {
		return 0
	}
	return v
}

// rectDistance returns the distance from a point to an axis-aligned
// rectangle; zero when the point is inside.
func rectDistance(px, py, minX, minY, maxX, maxY float64) float64 {
	dx := math.Max(math.Max(minX-px, 0), px-maxX)
	dy := math.Max(math.Max(minY-py, 0), py-maxY)
	return math.Hypot(dx, dy)
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
