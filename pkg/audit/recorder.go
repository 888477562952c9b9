package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/txn2/ai-notebook/pkg/auth"
)

const (
	defaultRecorderBuffer = 256
	recordTimeout         = 5 * time.Second
)

// SessionSource publishes session transitions.
type SessionSource interface {
	Subscribe(listener auth.Listener) (unsubscribe func())
}

// Recorder forwards events to a Logger from a background goroutine so
// that callers, including session listeners, never block on storage.
type Recorder struct {
	logger Logger
	log    *slog.Logger
	events chan Event
	done   chan struct{}

	mu          sync.Mutex
	closed      bool
	primed      bool
	last        *auth.Session
	unsubscribe func()
}

// NewRecorder starts a recorder writing to logger. bufferSize <= 0 uses
// the default.
func NewRecorder(logger Logger, log *slog.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultRecorderBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		logger: logger,
		log:    log,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.logger.Log(ctx, event); err != nil {
			r.log.Warn("failed to record audit event", "type", event.Type, "error", err)
		}
		cancel()
	}
}

// Record queues event. Events are dropped when the buffer is full or the
// recorder is closed.
func (r *Recorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- event:
	default:
		r.log.Warn("audit buffer full, dropping event", "type", event.Type)
	}
}

// Watch subscribes to src and records sign-in and sign-out transitions.
// The state delivered on subscription is taken as the baseline.
func (r *Recorder) Watch(src SessionSource) {
	unsubscribe := src.Subscribe(r.onSessionChange)
	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
}

func (r *Recorder) onSessionChange(event auth.Event, sess *auth.Session) {
	r.mu.Lock()
	prev, primed := r.last, r.primed
	r.last, r.primed = sess, true
	r.mu.Unlock()

	if !primed {
		return
	}

	switch event {
	case auth.SignedIn:
		if sess == nil || (prev != nil && prev.AccessToken == sess.AccessToken) {
			return
		}
		r.Record(*NewEvent(EventSignedIn).WithUser(sess.User.ID, sess.User.Email))
	case auth.SignedOut:
		if prev == nil {
			return
		}
		r.Record(*NewEvent(EventSignedOut).WithUser(prev.User.ID, prev.User.Email))
	}
}

// Close stops watching, drains queued events and closes the logger.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	close(r.events)
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	<-r.done
	return r.logger.Close()
}
