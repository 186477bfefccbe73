package intentdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoodleSploder/RayOS-sub005/internal/attention"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "intent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.MigrateUp("../../db/migrations"))
	return s
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MigrateUp("../../db/migrations"))

	version, dirty, err := s.MigrateVersion("../../db/migrations")
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestRecordAndListFixations(t *testing.T) {
	s := newTestStore(t)

	s.RecordFixation(&gaze.Fixation{
		ID: "fix-1", SensorID: "udp-9999", Generation: 1,
		CenterX: 0.5, CenterY: 0.4, Radius: 0.05,
		Dwell: 600 * time.Millisecond, Confidence: 0.9,
	})
	s.RecordFixation(&gaze.Fixation{
		ID: "fix-1", SensorID: "udp-9999", Generation: 2,
		CenterX: 0.51, CenterY: 0.41, Radius: 0.05,
		Dwell: 700 * time.Millisecond, Confidence: 0.91,
	})

	points, err := s.ListFixations(10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, uint64(1), points[0].Generation)
	assert.Equal(t, uint64(2), points[1].Generation)
	assert.InDelta(t, 600.0, points[0].DwellMs, 0.001)
}

func TestRecordResolutionWithHypotheses(t *testing.T) {
	s := newTestStore(t)

	s.RecordResolution(attention.Resolution{
		State:      attention.StateDeferred,
		Generation: 3,
		Hypotheses: []attention.FocusHypothesis{
			{ObjectID: "win-a", Probability: 0.81, Generation: 3, FixationID: "fix-1", Region: attention.RegionCenterArea},
			{ObjectID: "win-b", Probability: 0.80, Generation: 3, FixationID: "fix-1", Region: attention.RegionCenterArea},
		},
	})

	rows, err := s.ListHypotheses(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "deferred", rows[0].State)
	assert.Equal(t, uint64(3), rows[0].Generation)

	counts, err := s.StateCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["deferred"])
}

func TestRecordPublish(t *testing.T) {
	s := newTestStore(t)

	s.RecordPublish(attention.FocusHypothesis{
		ObjectID: "win-a", Probability: 0.9, Generation: 4, Region: attention.RegionTopBar,
	}, true)
	s.RecordPublish(attention.FocusHypothesis{
		ObjectID: "win-a", Probability: 0.88, Generation: 5, Region: attention.RegionTopBar,
	}, false)

	rows, err := s.ListPublishes(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Accepted)
	assert.False(t, rows[1].Accepted)
}
