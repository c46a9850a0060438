package gateway

import "sync"

// Stream is a Subscription implementation shared by the gateway backends.
// The backend owns the feed goroutine and calls Close when it exits.
type Stream struct {
	once   sync.Once
	stop   chan struct{}
	done   chan struct{}
	mu     sync.Mutex
	err    error
	cancel func()
}

// NewStream returns an open stream. cancel is invoked once on Unsubscribe.
func NewStream(cancel func()) *Stream {
	return &Stream{stop: make(chan struct{}), done: make(chan struct{}), cancel: cancel}
}

// Stopping is closed when Unsubscribe has been called.
func (s *Stream) Stopping() <-chan struct{} { return s.stop }

// Unsubscribe stops the feed and waits for the backend to finish.
func (s *Stream) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		if s.cancel != nil {
			s.cancel()
		}
	})
	<-s.done
}

// Close marks the feed as finished with err. Only the first call counts.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case <-s.stop:
		err = nil
	default:
	}
	s.err = err
	close(s.done)
}

func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
