package pipeline

import "sync/atomic"

// boundedQueue is the hand-off buffer between pipeline stages. When full,
// the oldest pending item is dropped to make room: freshness of attention
// matters more than completeness, so an old gaze sample is worse than no
// sample. Sheds are counted, never fatal.
type boundedQueue[T any] struct {
	ch   chan T
	shed *atomic.Uint64
}

func newBoundedQueue[T any](size int, shed *atomic.Uint64) *boundedQueue[T] {
	if size < 1 {
		size = 1
	}
	return &boundedQueue[T]{ch: make(chan T, size), shed: shed}
}

// offer enqueues v without ever blocking the producer. On a full buffer
// it evicts the oldest pending item and retries; a racing consumer can
// make this loop more than once but never indefinitely.
func (q *boundedQueue[T]) offer(v T) {
	for {
		select {
		case q.ch <- v:
			return
		default:
		}
		select {
		case <-q.ch:
			if q.shed != nil {
				q.shed.Add(1)
			}
		default:
		}
	}
}

// drain empties the buffer, returning the number of items discarded.
func (q *boundedQueue[T]) drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}
