package workflow

import "sync"

// sequencer applies responses in the order their requests were issued. Every
// issued ticket must be passed to apply exactly once.
type sequencer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	issued  uint64
	applied uint64
}

func newSequencer() *sequencer {
	s := &sequencer{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *sequencer) issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// apply blocks until every earlier ticket has applied, then runs fn.
func (s *sequencer) apply(ticket uint64, fn func()) {
	s.mu.Lock()
	for s.applied != ticket-1 {
		s.cond.Wait()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.applied = ticket
		s.mu.Unlock()
		s.cond.Broadcast()
	}()
	fn()
}
