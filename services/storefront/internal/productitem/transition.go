package productitem

import "sync"

// Focus names the control a count transition moves focus to.
type Focus int

const (
	FocusNone Focus = iota
	// FocusAdd targets the "add one more" control shown once an item is in
	// the cart.
	FocusAdd
	// FocusCartButton targets the primary "add to cart" button.
	FocusCartButton
)

func (f Focus) String() string {
	switch f {
	case FocusAdd:
		return "add"
	case FocusCartButton:
		return "cart-button"
	default:
		return "none"
	}
}

// Transition returns the focus effect of a count going from prev to curr.
// Only 0 -> 1 and 1 -> 0 have an effect.
func Transition(prev, curr int64) Focus {
	switch {
	case prev == 0 && curr == 1:
		return FocusAdd
	case prev == 1 && curr == 0:
		return FocusCartButton
	default:
		return FocusNone
	}
}

// tracker remembers the previous count of one upstream connection. The
// first observed count has no previous value and never has an effect.
type tracker struct {
	mu     sync.Mutex
	seen   bool
	prev   int64
	effect func(Focus)
}

func newTracker(effect func(Focus)) *tracker {
	return &tracker{effect: effect}
}

func (t *tracker) observe(curr int64) {
	t.mu.Lock()
	prev, seen := t.prev, t.seen
	t.prev, t.seen = curr, true
	t.mu.Unlock()

	if !seen {
		return
	}

	if f := Transition(prev, curr); f != FocusNone {
		t.effect(f)
	}
}
