package scene

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// forwardRay returns a straight-ahead cone originating at (x, y).
func forwardRay(x, y, spread float64) Ray {
	return Ray{OriginX: x, OriginY: y, DirX: 0, DirY: 0, DirZ: 1, Spread: spread}
}

func mustUpsert(t *testing.T, s *Scene, obj Object) {
	t.Helper()
	if err := s.Upsert(obj); err != nil {
		t.Fatalf("Upsert(%s): %v", obj.ID, err)
	}
}

func TestEmptySnapshotReturnsNoHits(t *testing.T) {
	s := NewScene()
	hits, err := s.Query(context.Background(), forwardRay(0.5, 0.5, 0.2))
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty scene returned %d hits", len(hits))
	}
}

func TestUpsertValidation(t *testing.T) {
	s := NewScene()
	cases := []Object{
		{ID: "", MinX: 0, MinY: 0, MaxX: 1, MaxY: 1, Depth: 1},
		{ID: "inverted", MinX: 0.5, MinY: 0, MaxX: 0.2, MaxY: 1, Depth: 1},
		{ID: "flat-depth", MinX: 0, MinY: 0, MaxX: 1, MaxY: 1, Depth: 0},
	}
	for _, obj := range cases {
		if err := s.Upsert(obj); err == nil {
			t.Errorf("Upsert(%q) accepted invalid object", obj.ID)
		}
	}
}

func TestCommitIsolatesQueries(t *testing.T) {
	s := NewScene()
	mustUpsert(t, s, Object{ID: "a", MinX: 0.4, MinY: 0.4, MaxX: 0.6, MaxY: 0.6, Depth: 1, Salience: 0.5})

	// Not committed yet: queries still see the empty snapshot.
	hits, _ := s.Query(context.Background(), forwardRay(0.5, 0.5, 0.2))
	if len(hits) != 0 {
		t.Fatalf("uncommitted object visible to query")
	}

	s.Commit()
	hits, _ = s.Query(context.Background(), forwardRay(0.5, 0.5, 0.2))
	if len(hits) != 1 || hits[0].ObjectID != "a" {
		t.Fatalf("committed object not hit: %+v", hits)
	}
}

func TestConcurrentCommitsNeverRegressSnapshot(t *testing.T) {
	s := NewScene()

	const commits = 50
	var wg sync.WaitGroup
	for i := 0; i < commits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Upsert(Object{
				ID:   "c" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
				MinX: 0.1, MinY: 0.1, MaxX: 0.9, MaxY: 0.9,
				Depth: 1, Salience: 0.5,
			})
			if err != nil {
				t.Errorf("Upsert: %v", err)
				return
			}
			s.Commit()
		}(i)
	}

	// Versions observed by a reader must never go backwards, even while
	// snapshot builds race outside the scene lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var last uint64
		for j := 0; j < 10000; j++ {
			v := s.Current().Version
			if v < last {
				t.Errorf("snapshot version regressed: %d after %d", v, last)
				return
			}
			last = v
		}
	}()

	wg.Wait()
	<-done
	if v := s.Current().Version; v != commits {
		t.Errorf("final snapshot version = %d, want %d", v, commits)
	}
}

func TestScoreDegradesWithAngularOffset(t *testing.T) {
	s := NewScene()
	mustUpsert(t, s, Object{ID: "center", MinX: 0.45, MinY: 0.45, MaxX: 0.55, MaxY: 0.55, Depth: 1, Salience: 0.5})
	mustUpsert(t, s, Object{ID: "offset", MinX: 0.65, MinY: 0.45, MaxX: 0.75, MaxY: 0.55, Depth: 1, Salience: 0.5})
	s.Commit()

	hits, err := s.Query(context.Background(), forwardRay(0.5, 0.5, 0.3))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ObjectID != "center" {
		t.Errorf("on-axis object not ranked first: %+v", hits)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("score did not degrade with offset: %v vs %v", hits[0].Score, hits[1].Score)
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("hit %s score out of range: %v", h.ObjectID, h.Score)
		}
	}
}

func TestOcclusionDiscountsButKeeps(t *testing.T) {
	s := NewScene()
	// "back" sits exactly behind "front" (same screen rect, greater depth).
	mustUpsert(t, s, Object{ID: "front", MinX: 0.4, MinY: 0.4, MaxX: 0.6, MaxY: 0.6, Depth: 1, Salience: 0.5})
	mustUpsert(t, s, Object{ID: "back", MinX: 0.4, MinY: 0.4, MaxX: 0.6, MaxY: 0.6, Depth: 2, Salience: 0.5})
	// "half" is only partially covered by front.
	mustUpsert(t, s, Object{ID: "half", MinX: 0.5, MinY: 0.4, MaxX: 0.7, MaxY: 0.6, Depth: 2, Salience: 0.5})
	s.Commit()

	hits, err := s.Query(context.Background(), forwardRay(0.5, 0.5, 0.4))
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]Hit{}
	for _, h := range hits {
		byID[h.ObjectID] = h
	}

	back, ok := byID["back"]
	if !ok {
		t.Fatal("fully occluded object was discarded outright")
	}
	if back.Visibility != 0 {
		t.Errorf("back visibility = %v, want 0", back.Visibility)
	}
	if back.Score != 0 {
		t.Errorf("fully occluded score = %v, want 0", back.Score)
	}

	half, ok := byID["half"]
	if !ok {
		t.Fatal("partially occluded object missing")
	}
	if half.Visibility <= 0 || half.Visibility >= 1 {
		t.Errorf("half visibility = %v, want in (0,1)", half.Visibility)
	}
	if half.Score <= back.Score {
		t.Error("partially visible object should outscore fully occluded one")
	}

	front := byID["front"]
	if front.Visibility != 1 {
		t.Errorf("front visibility = %v, want 1", front.Visibility)
	}
}

func TestNearerObjectScoresHigher(t *testing.T) {
	s := NewScene()
	mustUpsert(t, s, Object{ID: "near", MinX: 0.45, MinY: 0.45, MaxX: 0.55, MaxY: 0.55, Depth: 1, Salience: 0.5})
	mustUpsert(t, s, Object{ID: "far", MinX: 0.45, MinY: 0.05, MaxX: 0.55, MaxY: 0.15, Depth: 5, Salience: 0.5})
	s.Commit()

	hits, _ := s.Query(context.Background(), forwardRay(0.5, 0.5, 0.3))
	if len(hits) == 0 || hits[0].ObjectID != "near" {
		t.Errorf("nearer on-axis object not first: %+v", hits)
	}
}

func TestQueryHonorsCancellation(t *testing.T) {
	s := NewScene()
	for i := 0; i < 40; i++ {
		mustUpsert(t, s, Object{
			ID:   string(rune('a'+i%26)) + string(rune('0'+i/26)),
			MinX: float64(i%8) * 0.1, MinY: float64(i/8) * 0.1,
			MaxX: float64(i%8)*0.1 + 0.08, MaxY: float64(i/8)*0.1 + 0.08,
			Depth: 1 + float64(i%3), Salience: 0.5,
		})
	}
	s.Commit()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Query(ctx, forwardRay(0.5, 0.5, 1.0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Query() error = %v, want context.Canceled", err)
	}
}

func TestBVHMatchesExhaustiveScan(t *testing.T) {
	// With a wide cone every object is reachable; the BVH must find the
	// same candidates a linear scan would.
	s := NewScene()
	n := 0
	for gx := 0; gx < 6; gx++ {
		for gy := 0; gy < 6; gy++ {
			n++
			mustUpsert(t, s, Object{
				ID:   "obj-" + string(rune('a'+gx)) + string(rune('a'+gy)),
				MinX: float64(gx) * 0.16, MinY: float64(gy) * 0.16,
				MaxX: float64(gx)*0.16 + 0.12, MaxY: float64(gy)*0.16 + 0.12,
				Depth: 1, Salience: 0.5,
			})
		}
	}
	s.Commit()

	hits, err := s.Query(context.Background(), forwardRay(0.5, 0.5, math.Pi/2))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != n {
		t.Errorf("wide cone hit %d of %d objects", len(hits), n)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("hits not ordered by score at %d", i)
		}
	}
}

func TestEngineTimeoutDegradesToZeroHits(t *testing.T) {
	eng := NewEngine(slowIndex{delay: 50 * time.Millisecond}, EngineConfig{
		QueryTimeout: 5 * time.Millisecond,
		MaxHits:      8,
	})
	hits, err := eng.Cast(context.Background(), forwardRay(0.5, 0.5, 0.2))
	if err == nil {
		t.Fatal("expected timeout error from slow index")
	}
	if len(hits) != 0 {
		t.Errorf("timed-out cast returned %d hits", len(hits))
	}
}

func TestEngineTruncatesHits(t *testing.T) {
	s := NewScene()
	for i := 0; i < 12; i++ {
		mustUpsert(t, s, Object{
			ID:   "o" + string(rune('a'+i)),
			MinX: 0.4, MinY: 0.4, MaxX: 0.6, MaxY: 0.6,
			Depth: float64(i + 1), Salience: 0.5,
		})
	}
	s.Commit()

	eng := NewEngine(s, EngineConfig{QueryTimeout: time.Second, MaxHits: 5})
	hits, err := eng.Cast(context.Background(), forwardRay(0.5, 0.5, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 5 {
		t.Errorf("engine returned %d hits, want 5", len(hits))
	}
}

type slowIndex struct {
	delay time.Duration
}

func (s slowIndex) Query(ctx context.Context, ray Ray) ([]Hit, error) {
	select {
	case <-time.After(s.delay):
		return []Hit{{ObjectID: "late", Score: 1}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
