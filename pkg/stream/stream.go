// Package stream provides the small set of push-based primitives the
// storefront needs: a behaviour subject, a few operators and a
// reference-counted replaying multicast.
//
// Values are delivered synchronously on the goroutine that produced them.
// Observers must not call Next on, or subscribe to, the stream that is
// currently delivering to them.
package stream

import (
	"context"
	"sort"
	"sync"
)

type Subscription interface {
	Unsubscribe()
}

type Observable[T any] interface {
	Subscribe(next func(T)) Subscription
}

// ObservableFunc adapts a subscribe function to Observable.
type ObservableFunc[T any] func(next func(T)) Subscription

func (f ObservableFunc[T]) Subscribe(next func(T)) Subscription {
	return f(next)
}

type subscription struct {
	once sync.Once
	fn   func()
}

// NewSubscription returns a Subscription that runs fn on the first
// Unsubscribe call only.
func NewSubscription(fn func()) Subscription {
	return &subscription{fn: fn}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// Empty is a Subscription with nothing to release.
var Empty Subscription = NewSubscription(nil)

type registry[T any] struct {
	nextID    uint64
	observers map[uint64]func(T)
}

func (r *registry[T]) add(next func(T)) uint64 {
	if r.observers == nil {
		r.observers = make(map[uint64]func(T))
	}
	r.nextID++
	r.observers[r.nextID] = next
	return r.nextID
}

// snapshot returns observers in subscription order.
func (r *registry[T]) snapshot() []func(T) {
	ids := make([]uint64, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, r.observers[id])
	}
	return out
}

// Map projects every value through fn.
func Map[T, R any](src Observable[T], fn func(T) R) Observable[R] {
	return ObservableFunc[R](func(next func(R)) Subscription {
		return src.Subscribe(func(v T) {
			next(fn(v))
		})
	})
}

// Tap runs fn for every value before passing it on.
func Tap[T any](src Observable[T], fn func(T)) Observable[T] {
	return ObservableFunc[T](func(next func(T)) Subscription {
		return src.Subscribe(func(v T) {
			fn(v)
			next(v)
		})
	})
}

// DistinctUntilChanged drops values equal to the previous one.
func DistinctUntilChanged[T comparable](src Observable[T]) Observable[T] {
	return ObservableFunc[T](func(next func(T)) Subscription {
		var (
			mu   sync.Mutex
			seen bool
			prev T
		)

		return src.Subscribe(func(v T) {
			mu.Lock()
			if seen && prev == v {
				mu.Unlock()
				return
			}
			seen, prev = true, v
			mu.Unlock()

			next(v)
		})
	})
}

// Take delivers at most n values, then releases the source.
func Take[T any](src Observable[T], n int) Observable[T] {
	return ObservableFunc[T](func(next func(T)) Subscription {
		if n <= 0 {
			return Empty
		}

		var (
			mu       sync.Mutex
			count    int
			finished bool
			upstream Subscription
		)

		sub := src.Subscribe(func(v T) {
			mu.Lock()
			if count >= n {
				mu.Unlock()
				return
			}
			count++
			last := count == n
			if last {
				finished = true
			}
			up := upstream
			mu.Unlock()

			next(v)

			if last && up != nil {
				up.Unsubscribe()
			}
		})

		mu.Lock()
		upstream = sub
		done := finished
		mu.Unlock()

		// the source emitted synchronously before the handle existed
		if done {
			sub.Unsubscribe()
		}

		return NewSubscription(func() {
			mu.Lock()
			count = n
			mu.Unlock()
			sub.Unsubscribe()
		})
	})
}

// FromFunc returns a cold observable that runs fn on its own goroutine for
// every subscriber and emits the result once. Errors go to onErr, which may
// be nil. Unsubscribing cancels the context handed to fn.
func FromFunc[T any](ctx context.Context, fn func(ctx context.Context) (T, error), onErr func(error)) Observable[T] {
	return ObservableFunc[T](func(next func(T)) Subscription {
		runCtx, cancel := context.WithCancel(ctx)

		go func() {
			defer cancel()

			v, err := fn(runCtx)
			if err != nil {
				if onErr != nil {
					onErr(err)
				}
				return
			}

			if runCtx.Err() != nil {
				return
			}
			next(v)
		}()

		return NewSubscription(cancel)
	})
}
