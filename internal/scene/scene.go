package scene

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Scene is a reference implementation of the compositor side of the
// query contract. The compositor mutates objects under the lock and
// publishes an immutable Snapshot on Commit; queries always run against
// the most recently committed snapshot, so concurrent mutation never
// tears a query.
type Scene struct {
	mu      sync.Mutex
	objects map[string]Object
	version uint64

	snap atomic.Pointer[Snapshot]
}

// NewScene returns an empty scene with an empty committed snapshot.
func NewScene() *Scene {
	s := &Scene{objects: map[string]Object{}}
	s.snap.Store(buildSnapshot(nil, 0))
	return s
}

// Upsert adds or replaces an object. Changes are not visible to queries
// until Commit.
func (s *Scene) Upsert(obj Object) error {
	if obj.ID == "" {
		return fmt.Errorf("object ID must not be empty")
	}
	if obj.MinX >= obj.MaxX || obj.MinY >= obj.MaxY {
		return fmt.Errorf("object %s has inverted bounds (%f,%f)-(%f,%f)",
			obj.ID, obj.MinX, obj.MinY, obj.MaxX, obj.MaxY)
	}
	if obj.Depth <= 0 {
		return fmt.Errorf("object %s depth must be positive, got %f", obj.ID, obj.Depth)
	}
	if obj.Salience < 0 {
		obj.Salience = 0
	} else if obj.Salience > 1 {
		obj.Salience = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID] = obj
	return nil
}

// Remove deletes an object. Changes are not visible until Commit.
func (s *Scene) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
}

// Commit publishes the current object set as a new immutable snapshot.
func (s *Scene) Commit() {
	s.mu.Lock()
	objs := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		objs = append(objs, o)
	}
	s.version++
	version := s.version
	s.mu.Unlock()

	// Deterministic ordering keeps snapshot builds reproducible.
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID < objs[j].ID })
	snap := buildSnapshot(objs, version)

	// Snapshot builds run outside the lock, so a slower Commit must not
	// overwrite a newer snapshot already published by a concurrent one.
	for {
		cur := s.snap.Load()
		if cur != nil && cur.Version >= version {
			return
		}
		if s.snap.CompareAndSwap(cur, snap) {
			return
		}
	}
}

// Current returns the most recently committed snapshot.
func (s *Scene) Current() *Snapshot {
	return s.snap.Load()
}

// Query satisfies Index by running against the current snapshot, so a
// concurrent Commit never affects an in-flight query.
func (s *Scene) Query(ctx context.Context, ray Ray) ([]Hit, error) {
	return s.snap.Load().Query(ctx, ray)
}
