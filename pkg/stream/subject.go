package stream

import "sync"

// BehaviorSubject holds a current value and replays it to every new
// subscriber before any later value.
type BehaviorSubject[T any] struct {
	emitMu sync.Mutex

	mu     sync.Mutex
	value  T
	reg    registry[T]
	closed bool
}

func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{value: initial}
}

func (s *BehaviorSubject[T]) Subscribe(next func(T)) Subscription {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	current := s.value
	if s.closed {
		s.mu.Unlock()
		next(current)
		return Empty
	}
	id := s.reg.add(next)
	s.mu.Unlock()

	next(current)

	return NewSubscription(func() {
		s.mu.Lock()
		delete(s.reg.observers, id)
		s.mu.Unlock()
	})
}

// Next stores v and delivers it to all current subscribers. It is a no-op
// after Close.
func (s *BehaviorSubject[T]) Next(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.value = v
	observers := s.reg.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		o(v)
	}
}

// Update applies fn to the current value and emits the result, atomically
// with respect to other Next and Update calls.
func (s *BehaviorSubject[T]) Update(fn func(T) T) T {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		v := s.value
		s.mu.Unlock()
		return v
	}
	v := fn(s.value)
	s.value = v
	observers := s.reg.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		o(v)
	}
	return v
}

func (s *BehaviorSubject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Observers reports the number of live subscriptions.
func (s *BehaviorSubject[T]) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reg.observers)
}

// Close drops all subscribers. Later subscribers receive the final value
// only.
func (s *BehaviorSubject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.reg.observers = nil
}
