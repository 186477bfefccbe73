// Package intentdb persists pipeline outcomes (fixations, resolutions,
// publishes) to SQLite for observability and session reporting. The
// pipeline never depends on a write succeeding; failures are logged and
// dropped.
package intentdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NoodleSploder/RayOS-sub005/internal/attention"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/monitoring"
)

// Store wraps the SQLite handle.
type Store struct {
	*sql.DB
}

// NewStore opens (or creates) the database at path. Use ":memory:" for
// tests. Run MigrateUp before first use.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}

	// Single writer, many readers; WAL keeps the recorder from blocking
	// report queries.
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return &Store{db}, nil
}

// RecordFixation inserts one fixation update.
func (s *Store) RecordFixation(f *gaze.Fixation) {
	_, err := s.Exec(`
		INSERT INTO fixations (fixation_id, sensor_id, generation, center_x, center_y, radius, dwell_ms, confidence, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SensorID, f.Generation, f.CenterX, f.CenterY, f.Radius,
		f.DwellMs(), f.Confidence, time.Now().UnixNano(),
	)
	if err != nil {
		monitoring.Logf("intentdb: record fixation failed: %v", err)
	}
}

// RecordResolution inserts one resolver outcome with its hypothesis set.
func (s *Store) RecordResolution(res attention.Resolution) {
	result, err := s.Exec(`
		INSERT INTO resolutions (generation, state, recorded_at)
		VALUES (?, ?, ?)`,
		res.Generation, string(res.State), time.Now().UnixNano(),
	)
	if err != nil {
		monitoring.Logf("intentdb: record resolution failed: %v", err)
		return
	}
	resID, err := result.LastInsertId()
	if err != nil {
		monitoring.Logf("intentdb: resolution id unavailable: %v", err)
		return
	}
	for _, h := range res.Hypotheses {
		_, err := s.Exec(`
			INSERT INTO hypotheses (resolution_id, object_id, probability, generation, fixation_id, region, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			resID, h.ObjectID, h.Probability, h.Generation, h.FixationID, h.Region, h.CreatedNanos,
		)
		if err != nil {
			monitoring.Logf("intentdb: record hypothesis failed: %v", err)
		}
	}
}

// RecordPublish inserts one publish attempt.
func (s *Store) RecordPublish(h attention.FocusHypothesis, accepted bool) {
	_, err := s.Exec(`
		INSERT INTO publishes (object_id, probability, generation, region, accepted, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.ObjectID, h.Probability, h.Generation, h.Region, accepted, time.Now().UnixNano(),
	)
	if err != nil {
		monitoring.Logf("intentdb: record publish failed: %v", err)
	}
}

// FixationPoint is one fixation row for reporting.
type FixationPoint struct {
	FixationID string
	Generation uint64
	CenterX    float64
	CenterY    float64
	DwellMs    float64
	Confidence float64
}

// ListFixations returns up to limit fixation updates, oldest first.
func (s *Store) ListFixations(limit int) ([]FixationPoint, error) {
	rows, err := s.Query(`
		SELECT fixation_id, generation, center_x, center_y, dwell_ms, confidence
		FROM fixations ORDER BY recorded_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fixations: %w", err)
	}
	defer rows.Close()

	var out []FixationPoint
	for rows.Next() {
		var p FixationPoint
		if err := rows.Scan(&p.FixationID, &p.Generation, &p.CenterX, &p.CenterY, &p.DwellMs, &p.Confidence); err != nil {
			return nil, fmt.Errorf("scan fixation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HypothesisRow is one scored hypothesis for reporting.
type HypothesisRow struct {
	ObjectID    string
	Probability float64
	Generation  uint64
	Region      string
	State       string // resolver state of its generation
}

// ListHypotheses returns up to limit hypothesis rows joined with their
// resolution state, oldest first.
func (s *Store) ListHypotheses(limit int) ([]HypothesisRow, error) {
	rows, err := s.Query(`
		SELECT h.object_id, h.probability, h.generation, h.region, r.state
		FROM hypotheses h
		JOIN resolutions r ON r.resolution_id = h.resolution_id
		ORDER BY h.created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list hypotheses: %w", err)
	}
	defer rows.Close()

	var out []HypothesisRow
	for rows.Next() {
		var h HypothesisRow
		if err := rows.Scan(&h.ObjectID, &h.Probability, &h.Generation, &h.Region, &h.State); err != nil {
			return nil, fmt.Errorf("scan hypothesis: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// PublishRow is one publish attempt for reporting.
type PublishRow struct {
	ObjectID    string
	Probability float64
	Generation  uint64
	Region      string
	Accepted    bool
}

// ListPublishes returns up to limit publish attempts, oldest first.
func (s *Store) ListPublishes(limit int) ([]PublishRow, error) {
	rows, err := s.Query(`
		SELECT object_id, probability, generation, region, accepted
		FROM publishes ORDER BY recorded_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list publishes: %w", err)
	}
	defer rows.Close()

	var out []PublishRow
	for rows.Next() {
		var p PublishRow
		if err := rows.Scan(&p.ObjectID, &p.Probability, &p.Generation, &p.Region, &p.Accepted); err != nil {
			return nil, fmt.Errorf("scan publish: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StateCounts returns the number of resolutions per resolver state.
func (s *Store) StateCounts() (map[string]int, error) {
	rows, err := s.Query(`SELECT state, COUNT(*) FROM resolutions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("state counts: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		out[state] = n
	}
	return out, rows.Err()
}
