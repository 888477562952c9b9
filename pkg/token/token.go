// Package token issues and verifies the simulated session tokens.
//
// Access tokens are HS256 JWTs shaped like the hosted service's tokens so
// existing clients can decode them. Refresh tokens are opaque random strings.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is the lifetime of an access token.
	DefaultTTL = time.Hour

	// DefaultIssuer is the iss claim when none is configured.
	DefaultIssuer = "ai-notebook"

	// RoleAuthenticated is the role claim carried by every issued token.
	RoleAuthenticated = "authenticated"

	signingKeyBytes   = 32
	refreshTokenBytes = 32
)

// ErrInvalidToken is returned when a token fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Config configures an Issuer.
type Config struct {
	// SigningKey is the HMAC key. A random key is generated when empty,
	// which invalidates tokens across restarts.
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

// Claims are the access token claims.
type Claims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Pair is a freshly issued access and refresh token.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    time.Time
}

// Issuer signs and verifies tokens.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer from cfg.
func NewIssuer(cfg Config) (*Issuer, error) {
	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, signingKeyBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{key: key, issuer: cfg.Issuer, ttl: cfg.TTL, now: time.Now}, nil
}

// TTL returns the access token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a token pair for the given user.
func (i *Issuer) Issue(userID, email string) (*Pair, error) {
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Email:     email,
		SessionID: uuid.NewString(),
		Role:      RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refresh, err := generateSecureToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.ttl / time.Second),
		ExpiresAt:    expiresAt,
	}, nil
}

// Verify parses an access token and validates its signature, issuer and expiry.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.key, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
