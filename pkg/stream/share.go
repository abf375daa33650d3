package stream

import "sync"

// ShareReplay multicasts src to any number of observers with a replay
// buffer of one value and reference counting:
//
//   - the first observer connects to src; every src value is computed once
//     and delivered to all observers
//   - a late observer immediately receives the latest value
//   - when the last observer leaves, src is released and the buffer is
//     cleared; the next observer reconnects from scratch
func ShareReplay[T any](src Observable[T]) *Shared[T] {
	return &Shared[T]{src: src}
}

type Shared[T any] struct {
	src Observable[T]

	// connMu serializes connect and disconnect.
	connMu sync.Mutex
	// emitMu serializes delivery and replay.
	emitMu sync.Mutex

	mu       sync.Mutex
	reg      registry[T]
	hasValue bool
	last     T
	upstream Subscription
	conns    int
}

func (s *Shared[T]) Subscribe(next func(T)) Subscription {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.emitMu.Lock()
	s.mu.Lock()
	id := s.reg.add(next)
	connect := s.upstream == nil
	if connect {
		s.clear()
	}
	replay, hasValue := s.last, s.hasValue
	s.mu.Unlock()

	if !connect && hasValue {
		next(replay)
	}
	s.emitMu.Unlock()

	if connect {
		up := s.src.Subscribe(s.emit)

		s.mu.Lock()
		s.conns++
		if len(s.reg.observers) == 0 {
			// detached while connecting
			s.clear()
			s.mu.Unlock()
			up.Unsubscribe()
		} else {
			s.upstream = up
			s.mu.Unlock()
		}
	}

	return NewSubscription(func() { s.remove(id) })
}

func (s *Shared[T]) emit(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.last, s.hasValue = v, true
	observers := s.reg.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		o(v)
	}
}

func (s *Shared[T]) remove(id uint64) {
	s.mu.Lock()
	delete(s.reg.observers, id)
	if len(s.reg.observers) > 0 || s.upstream == nil {
		s.mu.Unlock()
		return
	}

	up := s.upstream
	s.upstream = nil
	s.clear()
	s.mu.Unlock()

	up.Unsubscribe()
}

// clear drops the replay buffer. Callers hold s.mu.
func (s *Shared[T]) clear() {
	var zero T
	s.last, s.hasValue = zero, false
}

// RefCount reports the number of attached observers.
func (s *Shared[T]) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reg.observers)
}

// Connections reports how many times the source has been connected.
func (s *Shared[T]) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}
