// Package eventloop runs queued tasks one at a time on a single goroutine.
// A task scheduled while another runs executes on a later turn, never
// inline.
package eventloop

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Scheduler interface {
	Schedule(task func()) bool
}

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Schedule queues task for a later turn. It reports false once the loop
// has been stopped.
func (l *Loop) Schedule(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes turns until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.wake:
			if l.isStopped() {
				return
			}
		}
	}
}

// RunPending executes one turn: the tasks queued before the call, in FIFO
// order. It returns the number of tasks run.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, task := range batch {
		l.runTask(task)
	}
	return len(batch)
}

// Drain runs turns until the queue is empty.
func (l *Loop) Drain() int {
	total := 0
	for {
		n := l.RunPending()
		if n == 0 {
			return total
		}
		total += n
	}
}

// Pending reports the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stop rejects new tasks and drops queued ones.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()

	task()
}
