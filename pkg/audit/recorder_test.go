package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/ai-notebook/pkg/auth"
)

// captureLogger keeps every logged event.
type captureLogger struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (c *captureLogger) Log(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...), nil
}

func (c *captureLogger) Close() error {
	c.closed = true
	return nil
}

func (c *captureLogger) types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeSource delivers transitions on demand.
type fakeSource struct {
	initial      *auth.Session
	listener     auth.Listener
	unsubscribed bool
}

func (f *fakeSource) Subscribe(listener auth.Listener) func() {
	f.listener = listener
	if f.initial != nil {
		listener(auth.SignedIn, f.initial)
	} else {
		listener(auth.SignedOut, nil)
	}
	return func() { f.unsubscribed = true }
}

func session(token, userID, email string) *auth.Session {
	return &auth.Session{
		AccessToken: token,
		User:        auth.Identity{ID: userID, Email: email},
	}
}

func TestRecorder_WatchRecordsTransitions(t *testing.T) {
	sink := &captureLogger{}
	rec := NewRecorder(sink, nil, 0)
	src := &fakeSource{}
	rec.Watch(src)

	alice := session("tok-1", "u-1", "alice@example.com")
	src.listener(auth.SignedIn, alice)
	src.listener(auth.SignedIn, alice) // same session, not recorded again
	src.listener(auth.SignedOut, nil)
	src.listener(auth.SignedOut, nil) // already signed out

	require.NoError(t, rec.Close())

	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut}, sink.types())
	assert.Equal(t, "u-1", sink.events[1].UserID, "sign-out carries the previous user")
	assert.True(t, src.unsubscribed)
	assert.True(t, sink.closed)
}

func TestRecorder_InitialStateIsBaseline(t *testing.T) {
	sink := &captureLogger{}
	rec := NewRecorder(sink, nil, 0)
	src := &fakeSource{initial: session("tok-1", "u-1", "alice@example.com")}
	rec.Watch(src)

	src.listener(auth.SignedIn, session("tok-2", "u-2", "bob@example.com"))
	require.NoError(t, rec.Close())

	events, err := sink.Query(context.Background(), QueryFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "bob@example.com", events[0].Email)
}

func TestRecorder_RecordAfterClose(t *testing.T) {
	sink := &captureLogger{}
	rec := NewRecorder(sink, nil, 1)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	rec.Record(*NewEvent(EventPasswordReset))
	assert.Empty(t, sink.types())
}

func TestRecorder_LoggerErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	sink := &captureLogger{err: errors.New("db down")}
	rec := NewRecorder(sink, slog.New(slog.NewTextHandler(&buf, nil)), 0)

	rec.Record(*NewEvent(EventLoginFailed).WithError("invalid login credentials"))
	require.NoError(t, rec.Close())

	assert.Contains(t, buf.String(), "failed to record audit event")
	assert.Contains(t, buf.String(), "db down")
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, l.Log(context.Background(), *NewEvent(EventSignedUp).WithUser("u-1", "alice@example.com")))
	require.NoError(t, l.Log(context.Background(), *NewEvent(EventLoginFailed).WithError("bad password")))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "type=signed_up")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `error="bad password"`)

	events, err := l.Query(context.Background(), QueryFilter{})
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, l.Close())
	assert.NotNil(t, NewSlogLogger(nil).logger)
}
