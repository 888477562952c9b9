package auth

import "sync"

// Event names a session transition.
type Event string

// Session transitions, named as the hosted service names them.
const (
	SignedIn  Event = "SIGNED_IN"
	SignedOut Event = "SIGNED_OUT"
)

// Listener receives session transitions. The session is nil on SignedOut
// and is a private copy otherwise.
//
// Listeners run on the goroutine that performed the transition, after the
// emulator has released its operation lock, and always in transition order.
// A listener may call any emulator method; transitions it causes are
// delivered once it returns.
type Listener func(event Event, session *Session)

type subscription struct {
	id uint64
	fn Listener
}

// listenerRegistry keeps listeners in registration order.
type listenerRegistry struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func (r *listenerRegistry) add(fn Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.subs = append(r.subs, subscription{id: r.nextID, fn: fn})
	return r.nextID
}

func (r *listenerRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *listenerRegistry) snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Listener, len(r.subs))
	for i, s := range r.subs {
		out[i] = s.fn
	}
	return out
}

func (r *listenerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// notification is one queued delivery. targets is fixed when the
// transition happens, so later subscribers do not see earlier transitions.
type notification struct {
	event   Event
	session *Session
	targets []Listener
}

// dispatcher delivers notifications in FIFO order with at most one
// goroutine delivering at a time.
type dispatcher struct {
	mu       sync.Mutex
	queue    []notification
	draining bool
}

func (d *dispatcher) enqueue(n notification) {
	d.mu.Lock()
	d.queue = append(d.queue, n)
	d.mu.Unlock()
}

// drain delivers queued notifications until the queue is empty. When
// another call is already draining, it returns at once and that call
// delivers the new entries.
func (d *dispatcher) drain() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true

	finished := false
	defer func() {
		if !finished {
			// A listener panicked; let the next caller resume delivery.
			d.mu.Lock()
			d.draining = false
			d.mu.Unlock()
		}
	}()

	for len(d.queue) > 0 {
		n := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		for _, fn := range n.targets {
			fn(n.event, cloneSession(n.session))
		}
		d.mu.Lock()
	}
	d.draining = false
	finished = true
	d.mu.Unlock()
}
