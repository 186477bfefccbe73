package attention

// decayedRecencyForTest exposes the recency ledger to tests.
func (s *Scorer) decayedRecencyForTest(objectID string, nowNanos int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decayedRecency(objectID, nowNanos)
}
