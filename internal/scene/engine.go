package scene

import (
	"context"
	"sync"
	"time"
)

// EngineConfig holds the cone-cast budget limits.
type EngineConfig struct {
	// QueryTimeout bounds one index query; on expiry the cast degrades to
	// zero hits for that generation.
	QueryTimeout time.Duration
	// MaxHits truncates the returned sequence; the index may rank more
	// candidates than downstream stages are allowed to consume.
	MaxHits int
}

// DefaultEngineConfig returns the default cast budget.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		QueryTimeout: 20 * time.Millisecond,
		MaxHits:      32,
	}
}

// Engine casts attention cones against an externally owned Index under a
// hard latency budget. It is the only pipeline component with such a
// budget: the index may be queried at fixation-update frequency while the
// compositor mutates the scene underneath.
type Engine struct {
	index Index

	mu  sync.RWMutex
	cfg EngineConfig
}

// NewEngine creates an Engine querying the given index.
func NewEngine(index Index, cfg EngineConfig) *Engine {
	if cfg.MaxHits <= 0 {
		cfg.MaxHits = DefaultEngineConfig().MaxHits
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultEngineConfig().QueryTimeout
	}
	return &Engine{index: index, cfg: cfg}
}

// SetConfig swaps the cast budget. Applies from the next cast.
func (e *Engine) SetConfig(cfg EngineConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.MaxHits > 0 {
		e.cfg.MaxHits = cfg.MaxHits
	}
	if cfg.QueryTimeout > 0 {
		e.cfg.QueryTimeout = cfg.QueryTimeout
	}
}

// Cast queries the index with the configured deadline. A query error or
// timeout is not fatal: it returns the error alongside zero hits so the
// caller can count it and treat the generation as ambient. The hit
// sequence is truncated to MaxHits; it arrives ordered from the index.
func (e *Engine) Cast(ctx context.Context, ray Ray) ([]Hit, error) {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	qctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()

	hits, err := e.index.Query(qctx, ray)
	if err != nil {
		return nil, err
	}
	if len(hits) > cfg.MaxHits {
		hits = hits[:cfg.MaxHits]
	}
	return hits, nil
}
