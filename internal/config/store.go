package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store holds the live TuningConfig and swaps it atomically on update.
// Pipeline stages read Current() each cycle, so a successful update takes
// effect without a restart; a failed update leaves the previous config
// live.
type Store struct {
	current atomic.Pointer[TuningConfig]

	mu        sync.Mutex
	listeners []func(*TuningConfig)
}

// NewStore creates a Store seeded with cfg. A nil cfg seeds an empty
// config, which answers every accessor with its default.
func NewStore(cfg *TuningConfig) *Store {
	s := &Store{}
	if cfg == nil {
		cfg = EmptyTuningConfig()
	}
	s.current.Store(cfg)
	return s
}

// Current returns the live configuration. The returned value must be
// treated as read-only.
func (s *Store) Current() *TuningConfig {
	return s.current.Load()
}

// Update merges patch over the live config, validates the result, and
// swaps it in. On validation failure the live config is unchanged and
// the error describes the rejected field.
func (s *Store) Update(patch *TuningConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current.Load().Merge(patch)
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("rejected config update: %w", err)
	}
	s.current.Store(merged)
	for _, fn := range s.listeners {
		fn(merged)
	}
	return nil
}

// OnUpdate registers a callback invoked with the new config after each
// successful update. Callbacks run synchronously under the update lock;
// keep them short.
func (s *Store) OnUpdate(fn func(*TuningConfig)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
