// Package api exposes the attention pipeline over HTTP: tuning params
// with hot reload, resolver state, the live hypothesis set, and the
// pipeline counters.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/attention"
	"github.com/NoodleSploder/RayOS-sub005/internal/attention/pipeline"
	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze/gazenet"
	"github.com/NoodleSploder/RayOS-sub005/internal/intentdb"
	"github.com/NoodleSploder/RayOS-sub005/internal/monitoring"
	"github.com/NoodleSploder/RayOS-sub005/internal/sched"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the /api/attention surface. DB, queue, bridge and
// listener are optional; the matching response fields are omitted when
// they are absent.
type Server struct {
	pipeline *pipeline.Pipeline
	cfg      *config.Store
	db       *intentdb.Store
	queue    *sched.IntentQueue
	bridge   *sched.Bridge
	listener *gazenet.UDPListener
}

// NewServer assembles an API server around a running pipeline.
func NewServer(p *pipeline.Pipeline, cfg *config.Store) *Server {
	return &Server{pipeline: p, cfg: cfg}
}

// WithDB attaches the intent store for the stats and history endpoints.
func (s *Server) WithDB(db *intentdb.Store) *Server { s.db = db; return s }

// WithQueue attaches the scheduler queue and bridge for stats.
func (s *Server) WithQueue(q *sched.IntentQueue, b *sched.Bridge) *Server {
	s.queue = q
	s.bridge = b
	return s
}

// WithListener attaches the UDP listener for traffic stats.
func (s *Server) WithListener(l *gazenet.UDPListener) *Server { s.listener = l; return s }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table for the attention API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/attention/params", s.handleParams)
	mux.HandleFunc("/api/attention/state", s.handleState)
	mux.HandleFunc("/api/attention/hypotheses", s.handleHypotheses)
	mux.HandleFunc("/api/attention/stats", s.handleStats)
	mux.HandleFunc("/api/attention/reset", s.handleReset)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// EffectiveParams is the resolved tuning view: every field carries the
// value actually in force, defaults filled in.
type EffectiveParams struct {
	MinDwellMs           int     `json:"min_dwell_ms"`
	EMAAlpha             float64 `json:"ema_alpha"`
	FixationRadius       float64 `json:"fixation_radius"`
	MicroSaccadeWindowMs int     `json:"micro_saccade_window_ms"`
	ConfidenceFloor      float64 `json:"confidence_floor"`
	MinConeSpread        float64 `json:"min_cone_spread"`
	MaxConeSpread        float64 `json:"max_cone_spread"`
	MaxHypotheses        int     `json:"max_hypotheses"`
	RecencyDecayRate     float64 `json:"recency_decay_rate"`
	WeightGeometry       float64 `json:"weight_geometry"`
	WeightDwell          float64 `json:"weight_dwell"`
	WeightSalience       float64 `json:"weight_salience"`
	WeightRecency        float64 `json:"weight_recency"`
	WeightContext        float64 `json:"weight_context"`
	DeferThreshold       float64 `json:"defer_threshold"`
	ConflictMargin       float64 `json:"conflict_margin"`
	SampleQueueSize      int     `json:"sample_queue_size"`
	FixationQueueSize    int     `json:"fixation_queue_size"`
	HypothesisQueueSize  int     `json:"hypothesis_queue_size"`
	SensorIdleTimeout    string  `json:"sensor_idle_timeout"`
	QueryTimeout         string  `json:"query_timeout"`
}

func effectiveParams(c *config.TuningConfig) EffectiveParams {
	return EffectiveParams{
		MinDwellMs:           int(c.GetMinDwell() / time.Millisecond),
		EMAAlpha:             c.GetEMAAlpha(),
		FixationRadius:       c.GetFixationRadius(),
		MicroSaccadeWindowMs: int(c.GetMicroSaccadeWindow() / time.Millisecond),
		ConfidenceFloor:      c.GetConfidenceFloor(),
		MinConeSpread:        c.GetMinConeSpread(),
		MaxConeSpread:        c.GetMaxConeSpread(),
		MaxHypotheses:        c.GetMaxHypotheses(),
		RecencyDecayRate:     c.GetRecencyDecayRate(),
		WeightGeometry:       c.GetWeightGeometry(),
		WeightDwell:          c.GetWeightDwell(),
		WeightSalience:       c.GetWeightSalience(),
		WeightRecency:        c.GetWeightRecency(),
		WeightContext:        c.GetWeightContext(),
		DeferThreshold:       c.GetDeferThreshold(),
		ConflictMargin:       c.GetConflictMargin(),
		SampleQueueSize:      c.GetSampleQueueSize(),
		FixationQueueSize:    c.GetFixationQueueSize(),
		HypothesisQueueSize:  c.GetHypothesisQueueSize(),
		SensorIdleTimeout:    c.GetSensorIdleTimeout().String(),
		QueryTimeout:         c.GetQueryTimeout().String(),
	}
}

// handleParams serves GET/POST /api/attention/params.
//
// GET returns the effective tuning values. POST accepts a partial
// TuningConfig JSON body, validates it, and hot-reloads the running
// pipeline; queue sizes apply at the next restart.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		// fall through to the response below
	case http.MethodPost:
		patch := config.EmptyTuningConfig()
		if err := json.NewDecoder(r.Body).Decode(patch); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params body: %v", err))
			return
		}
		if err := s.cfg.Update(patch); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
			return
		}
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(effectiveParams(s.cfg.Current())); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write params")
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.pipeline.Status()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write state")
	}
}

// HypothesesResponse carries the live hypothesis set, deferred ones
// included, for an observer or disambiguation surface.
type HypothesesResponse struct {
	State      string                      `json:"state"`
	Generation uint64                      `json:"generation"`
	Hypotheses []attention.FocusHypothesis `json:"hypotheses"`
}

func (s *Server) handleHypotheses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	st := s.pipeline.Status()
	resp := HypothesesResponse{
		State:      string(st.State),
		Generation: st.Generation,
		Hypotheses: st.Hypotheses,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write hypotheses")
	}
}

// StatsResponse aggregates the counter sets of every attached component.
type StatsResponse struct {
	Pipeline    monitoring.CountersSnapshot `json:"pipeline"`
	Queue       *sched.QueueStats           `json:"queue,omitempty"`
	Bridge      *sched.BridgeStats          `json:"bridge,omitempty"`
	Listener    *ListenerStatsView          `json:"listener,omitempty"`
	StateCounts map[string]int              `json:"state_counts,omitempty"`
}

// ListenerStatsView is the JSON shape of the UDP listener counters.
type ListenerStatsView struct {
	Packets   uint64 `json:"packets"`
	Bytes     uint64 `json:"bytes"`
	Malformed uint64 `json:"malformed"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := StatsResponse{Pipeline: s.pipeline.Counters().Snapshot()}
	if s.queue != nil {
		qs := s.queue.Stats()
		resp.Queue = &qs
	}
	if s.bridge != nil {
		bs := s.bridge.Stats()
		resp.Bridge = &bs
	}
	if s.listener != nil {
		ls := s.listener.Stats()
		resp.Listener = &ListenerStatsView{
			Packets:   ls.Packets.Load(),
			Bytes:     ls.Bytes.Load(),
			Malformed: ls.Malformed.Load(),
		}
	}
	if s.db != nil {
		counts, err := s.db.StateCounts()
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve state counts: %v", err))
			return
		}
		resp.StateCounts = counts
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
	}
}

// handleReset discards fixation state, recency, and queued work. Used by
// operators after moving the rig or swapping users.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.pipeline.Reset()
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}
