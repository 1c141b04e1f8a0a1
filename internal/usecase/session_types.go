package usecase

import (
	"sync"

	"calmly/internal/ports"
)

type activeSession struct {
	id       string
	cancel   func()
	pipeline ports.CapturePipeline

	mu       sync.Mutex
	conn     ports.SessionConnection
	released bool

	stopping     chan struct{}
	stopOnce     sync.Once
	teardownOnce sync.Once
	messagesDone chan struct{}
	consuming    bool
	finished     chan struct{}
	finishOnce   sync.Once
}

func newActiveSession(id string, cancel func(), pipeline ports.CapturePipeline) *activeSession {
	return &activeSession{
		id:           id,
		cancel:       cancel,
		pipeline:     pipeline,
		stopping:     make(chan struct{}),
		messagesDone: make(chan struct{}),
		finished:     make(chan struct{}),
	}
}

// attach hands the connection to the session. It returns false when the
// session has already been released, in which case the caller owns conn.
func (s *activeSession) attach(conn ports.SessionConnection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.conn = conn
	return true
}

func (s *activeSession) startConsuming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || s.conn == nil {
		return false
	}
	s.consuming = true
	return true
}

func (s *activeSession) release() (ports.SessionConnection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return s.conn, s.consuming
}

func (s *activeSession) markStopping() {
	s.stopOnce.Do(func() { close(s.stopping) })
}

func (s *activeSession) markFinished() {
	s.finishOnce.Do(func() { close(s.finished) })
}
