package audit

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	// EventSignedUp is a registration attempt.
	EventSignedUp EventType = "signed_up"

	// EventSignedIn is a session start.
	EventSignedIn EventType = "signed_in"

	// EventSignedOut is a session end.
	EventSignedOut EventType = "signed_out"

	// EventLoginFailed is a rejected login attempt.
	EventLoginFailed EventType = "login_failed"

	// EventProfileUpdated is a profile metadata change.
	EventProfileUpdated EventType = "profile_updated"

	// EventPasswordReset is a password reset request.
	EventPasswordReset EventType = "password_reset"
)

// NewEvent creates a successful event of the given type.
func NewEvent(typ EventType) *Event {
	return &Event{
		ID:        generateEventID(),
		Timestamp: time.Now(),
		Type:      typ,
		Success:   true,
	}
}

// WithUser adds user information to the event.
func (e *Event) WithUser(userID, email string) *Event {
	e.UserID = userID
	e.Email = email
	return e
}

// WithError marks the event failed with msg.
func (e *Event) WithError(msg string) *Event {
	e.Success = false
	e.ErrorMessage = msg
	return e
}

// WithRemoteAddr records where the request came from.
func (e *Event) WithRemoteAddr(addr string) *Event {
	e.RemoteAddr = addr
	return e
}

// generateEventID generates a unique event ID.
func generateEventID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}
