package buffer

import (
	"sync"

	"github.com/google/uuid"
)

// AckSet tracks downstream durable receipt for the events of one batch.
// Events are registered when they are submitted and acknowledged once the
// sink has accepted them; the completion callback fires when every
// registered event has been acknowledged, which is when a shard checkpoint
// may advance. Failing the set fires the callback with ok=false.
type AckSet struct {
	id string

	mu        sync.Mutex
	pending   int
	completed bool
	onDone    func(ok bool)
}

// NewAckSet builds a set with an optional completion callback.
func NewAckSet(onDone func(ok bool)) *AckSet {
	return &AckSet{id: uuid.NewString(), onDone: onDone}
}

// ID returns the set's identifier, for log correlation.
func (s *AckSet) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Add registers n more in-flight events with the set. A nil set ignores the
// call, so callers that do not track acknowledgements can pass one through.
func (s *AckSet) Add(n int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending += n
}

// Acknowledge marks n registered events as durably received. The completion
// callback fires once when the pending count reaches zero.
func (s *AckSet) Acknowledge(n int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending -= n
	if s.pending <= 0 && !s.completed {
		s.completed = true
		if s.onDone != nil {
			s.onDone(true)
		}
	}
}

// Fail completes the set unsuccessfully. Safe to call more than once; the
// callback still fires only once.
func (s *AckSet) Fail() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	s.completed = true
	if s.onDone != nil {
		s.onDone(false)
	}
}
