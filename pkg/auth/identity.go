package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Metadata is the user-editable profile attached to an Identity.
type Metadata struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Identity is a registered account as seen by callers. The password hash
// never leaves the emulator.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Metadata  Metadata  `json:"user_metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the active authenticated session. ExpiresAt is Unix seconds.
type Session struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         Identity `json:"user"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// Profile is the optional metadata supplied at registration.
type Profile struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ProfileUpdate carries metadata changes. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

func (u ProfileUpdate) apply(m *Metadata) {
	if u.DisplayName != nil {
		m.DisplayName = *u.DisplayName
	}
	if u.AvatarURL != nil {
		m.AvatarURL = *u.AvatarURL
	}
}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// localPart returns the part of an address before '@'.
func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func encodeSession(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.AccessToken == "" || s.User.ID == "" {
		return nil, fmt.Errorf("decoding session: missing access token or user")
	}
	return &s, nil
}
