package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/gofiber/fiber/v2"
)

type sseEvent struct {
	name string
	data any
}

// sseQueue holds the events of one stream until the writer drains them.
// Pushed events are all kept in order. A replaced event supersedes any
// undrained event of the same name, so a slow client only sees the newest
// count.
type sseQueue struct {
	mu      sync.Mutex
	pending []sseEvent
	notify  chan struct{}
}

func newSSEQueue() *sseQueue {
	return &sseQueue{notify: make(chan struct{}, 1)}
}

func (q *sseQueue) push(ev sseEvent) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	q.signal()
}

func (q *sseQueue) replace(ev sseEvent) {
	q.mu.Lock()
	q.pending = slices.DeleteFunc(q.pending, func(p sseEvent) bool { return p.name == ev.name })
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	q.signal()
}

func (q *sseQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// ready fires at least once after every push or replace.
func (q *sseQueue) ready() <-chan struct{} {
	return q.notify
}

func (q *sseQueue) drain() []sseEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = nil
	return out
}

type focusControl struct {
	queue  *sseQueue
	target string
}

func (f focusControl) Focus() {
	f.queue.push(sseEvent{name: "focus", data: fiber.Map{"target": f.target}})
}

func writeEvent(w *bufio.Writer, ev sseEvent) error {
	payload, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, payload)
	return err
}
