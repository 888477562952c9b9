// Package auth emulates the hosted authentication service: account
// registration, password login, a single active session that survives
// restarts through a kvstore, and broadcast of session transitions.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/kvstore"
	"github.com/txn2/ai-notebook/pkg/password"
	"github.com/txn2/ai-notebook/pkg/token"
)

const (
	// DefaultSessionKey is the kvstore key holding the serialized session.
	DefaultSessionKey = "notebook.auth.session"

	// DefaultAccountsKey is the kvstore key holding registered accounts.
	DefaultAccountsKey = "notebook.auth.accounts"

	tokenTypeBearer = "bearer"
)

// State is the emulator's authentication state.
type State string

// Authentication states.
const (
	StateSignedOut State = "signed_out"
	StateSignedIn  State = "signed_in"
)

// Config configures an Emulator.
type Config struct {
	// Store persists the active session. Defaults to an in-memory store.
	Store kvstore.Store
	// Tokens issues session tokens. Defaults to an issuer with a random key.
	Tokens *token.Issuer
	// PasswordParams tunes argon2id. Defaults to password.DefaultParams.
	PasswordParams *password.Params
	// MinPasswordLength rejects shorter passwords at registration with
	// failure.InvalidInput. Zero only rejects empty passwords.
	MinPasswordLength int
	// SessionKey overrides DefaultSessionKey.
	SessionKey string
	// AccountsKey overrides DefaultAccountsKey.
	AccountsKey string
	Logger      *slog.Logger
}

type account struct {
	identity     Identity
	passwordHash string
}

// Emulator is the authentication emulator. It is safe for concurrent use.
//
// Operations that change the session (Register, Login, Logout,
// UpdateProfile, Resync) run one at a time. Their notifications are queued
// in order and delivered after the operation releases its lock, so a
// listener may call back into the emulator.
type Emulator struct {
	store  kvstore.Store
	tokens *token.Issuer
	params *password.Params
	key    string
	minPw  int

	accountsKey string
	logger *slog.Logger
	now    func() time.Time

	opMu sync.Mutex

	mu       sync.RWMutex
	accounts map[string]*account
	session  *Session

	listeners listenerRegistry
	events    dispatcher

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Emulator and restores a persisted, unexpired session.
// Restore problems are logged and leave the emulator signed out.
func New(ctx context.Context, cfg Config) (*Emulator, error) {
	if cfg.Store == nil {
		cfg.Store = kvstore.NewMemoryStore()
	}
	if cfg.Tokens == nil {
		issuer, err := token.NewIssuer(token.Config{})
		if err != nil {
			return nil, fmt.Errorf("creating token issuer: %w", err)
		}
		cfg.Tokens = issuer
	}
	if cfg.PasswordParams == nil {
		cfg.PasswordParams = password.DefaultParams()
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = DefaultSessionKey
	}
	if cfg.AccountsKey == "" {
		cfg.AccountsKey = DefaultAccountsKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Emulator{
		store:    cfg.Store,
		tokens:   cfg.Tokens,
		params:   cfg.PasswordParams,
		key:      cfg.SessionKey,
		minPw:    cfg.MinPasswordLength,
		logger:   cfg.Logger,
		now:      time.Now,
		accounts: make(map[string]*account),

		accountsKey: cfg.AccountsKey,
	}

	e.mergeAccounts(ctx)

	sess, err := e.loadPersisted(ctx)
	if err != nil {
		e.logger.Warn("session restore failed, continuing signed out",
			"mode", e.store.Mode(), "error", err)
	}
	if sess != nil {
		e.session = sess
		e.adoptSessionIdentity(sess)
		e.logger.Info("session restored", "user_id", sess.User.ID, "email", sess.User.Email)
	}
	return e, nil
}

// Register creates an account and signs it in.
//
// When the session cannot be persisted the returned error is
// failure.StorageUnavailable, but the identity and session are still
// returned and active.
func (e *Emulator) Register(ctx context.Context, email, pw string, profile Profile) (*Identity, *Session, error) {
	const op = "register"

	email = normalizeEmail(email)
	if err := validateCredentials(email, pw, e.minPw); err != nil {
		return nil, nil, err
	}

	defer e.events.drain()
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mergeAccounts(ctx)

	e.mu.RLock()
	_, exists := e.accounts[email]
	e.mu.RUnlock()
	if exists {
		return nil, nil, failure.New(failure.DuplicateIdentity, op, "user already registered")
	}

	hash, err := password.Hash(pw, e.params)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	displayName := profile.DisplayName
	if displayName == "" {
		displayName = localPart(email)
	}
	identity := Identity{
		ID:    uuid.NewString(),
		Email: email,
		Metadata: Metadata{
			DisplayName: displayName,
			AvatarURL:   profile.AvatarURL,
		},
		CreatedAt: e.now().UTC(),
	}

	sess, err := e.newSession(identity)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	e.accounts[email] = &account{identity: identity, passwordHash: hash}
	e.session = sess
	e.mu.Unlock()

	e.logger.Info("user registered", "user_id", identity.ID, "email", email)

	accountsErr := e.saveAccounts(ctx, op)
	saveErr := e.save(ctx, op, sess)
	e.publish(SignedIn, sess)

	if saveErr == nil {
		saveErr = accountsErr
	}
	id := identity
	return &id, cloneSession(sess), saveErr
}

// Login verifies credentials and replaces any active session with a new one.
// An unknown email and a wrong password both yield failure.InvalidCredentials.
//
// Persistence failures are reported as in Register.
func (e *Emulator) Login(ctx context.Context, email, pw string) (*Identity, *Session, error) {
	const op = "login"

	email = normalizeEmail(email)

	defer e.events.drain()
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mergeAccounts(ctx)

	e.mu.RLock()
	acct, ok := e.accounts[email]
	var identity Identity
	var hash string
	if ok {
		identity, hash = acct.identity, acct.passwordHash
	}
	e.mu.RUnlock()

	if !ok || hash == "" {
		return nil, nil, failure.New(failure.InvalidCredentials, op, "invalid login credentials")
	}
	match, err := password.Verify(pw, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying password: %w", err)
	}
	if !match {
		return nil, nil, failure.New(failure.InvalidCredentials, op, "invalid login credentials")
	}

	sess, err := e.newSession(identity)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	e.session = sess
	e.mu.Unlock()

	e.logger.Info("user signed in", "user_id", identity.ID, "email", email)

	saveErr := e.save(ctx, op, sess)
	e.publish(SignedIn, sess)

	return &identity, cloneSession(sess), saveErr
}

// Logout ends the active session. Without an active session it succeeds
// and notifies nobody.
func (e *Emulator) Logout(ctx context.Context) error {
	const op = "logout"

	defer e.events.drain()
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	prev := e.session
	e.session = nil
	e.mu.Unlock()

	if prev == nil {
		if err := e.store.Remove(ctx, e.key); err != nil {
			e.logger.Debug("clearing stale session failed", "error", err)
		}
		return nil
	}

	e.logger.Info("user signed out", "user_id", prev.User.ID)

	var saveErr error
	if err := e.store.Remove(ctx, e.key); err != nil {
		e.logger.Warn("removing persisted session failed", "mode", e.store.Mode(), "error", err)
		saveErr = failure.Wrap(failure.StorageUnavailable, op, err)
	}
	e.publish(SignedOut, nil)
	return saveErr
}

// CurrentUser returns the signed-in identity, or nil.
func (e *Emulator) CurrentUser() *Identity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return nil
	}
	id := e.session.User
	return &id
}

// CurrentUserID returns the signed-in identity's id.
func (e *Emulator) CurrentUserID() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return "", false
	}
	return e.session.User.ID, true
}

// CurrentSession returns a copy of the active session, or nil.
func (e *Emulator) CurrentSession() *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneSession(e.session)
}

// State reports whether a session is active.
func (e *Emulator) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return StateSignedOut
	}
	return StateSignedIn
}

// UpdateProfile merges update into the signed-in identity's metadata and
// re-persists the session. It does not notify listeners.
func (e *Emulator) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Identity, error) {
	const op = "update_profile"

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, failure.New(failure.NotAuthenticated, op, "no active session")
	}
	sess := cloneSession(e.session)
	update.apply(&sess.User.Metadata)
	e.session = sess
	_, known := e.accounts[sess.User.Email]
	if known {
		update.apply(&e.accounts[sess.User.Email].identity.Metadata)
	}
	e.mu.Unlock()

	saveErr := e.save(ctx, op, sess)
	if known {
		if err := e.saveAccounts(ctx, op); saveErr == nil {
			saveErr = err
		}
	}

	id := sess.User
	return &id, saveErr
}

// ResetPasswordForEmail accepts a reset request. It always succeeds and
// never reveals whether the address is registered.
func (e *Emulator) ResetPasswordForEmail(_ context.Context, email string) error {
	e.logger.Debug("password reset requested", "email", normalizeEmail(email))
	return nil
}

// Subscribe registers listener. It is called once immediately with the
// current state, then on every transition. The returned function removes
// the listener and may be called more than once.
//
// Called from inside another listener, the initial call is delivered after
// that listener returns.
func (e *Emulator) Subscribe(listener Listener) (unsubscribe func()) {
	defer e.events.drain()
	e.opMu.Lock()
	defer e.opMu.Unlock()

	id := e.listeners.add(listener)

	if sess := e.CurrentSession(); sess != nil {
		e.events.enqueue(notification{event: SignedIn, session: sess, targets: []Listener{listener}})
	} else {
		e.events.enqueue(notification{event: SignedOut, targets: []Listener{listener}})
	}

	var once sync.Once
	return func() {
		once.Do(func() { e.listeners.remove(id) })
	}
}

// Subscribers returns the number of registered listeners.
func (e *Emulator) Subscribers() int {
	return e.listeners.len()
}

// publish queues event for every current listener. Callers hold opMu and
// defer e.events.drain before locking it.
func (e *Emulator) publish(event Event, sess *Session) {
	e.events.enqueue(notification{event: event, session: cloneSession(sess), targets: e.listeners.snapshot()})
}

func (e *Emulator) newSession(identity Identity) (*Session, error) {
	pair, err := e.tokens.Issue(identity.ID, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}
	return &Session{
		AccessToken:  pair.AccessToken,
		TokenType:    tokenTypeBearer,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt.Unix(),
		User:         identity,
	}, nil
}

// save writes sess to the store. Failures are logged and returned as
// failure.StorageUnavailable; the in-memory session is kept either way.
func (e *Emulator) save(ctx context.Context, op string, sess *Session) error {
	data, err := encodeSession(sess)
	if err == nil {
		err = e.store.Set(ctx, e.key, data)
	}
	if err != nil {
		e.logger.Warn("persisting session failed, session kept in memory only",
			"mode", e.store.Mode(), "error", err)
		return failure.Wrap(failure.StorageUnavailable, op, err)
	}
	return nil
}

// loadPersisted returns the stored session when present and unexpired.
// Corrupt or expired blobs are removed and yield nil, nil.
func (e *Emulator) loadPersisted(ctx context.Context) (*Session, error) {
	data, err := e.store.Get(ctx, e.key)
	if err != nil {
		return nil, failure.Wrap(failure.StorageUnavailable, "restore", err)
	}
	if data == nil {
		return nil, nil
	}

	sess, err := decodeSession(data)
	if err != nil {
		e.logger.Warn("discarding unreadable persisted session", "error", err)
		e.discardPersisted(ctx)
		return nil, nil
	}
	if sess.Expired(e.now()) {
		e.logger.Info("persisted session expired", "user_id", sess.User.ID)
		e.discardPersisted(ctx)
		return nil, nil
	}
	return sess, nil
}

func (e *Emulator) discardPersisted(ctx context.Context) {
	if err := e.store.Remove(ctx, e.key); err != nil {
		e.logger.Warn("removing persisted session failed", "error", err)
	}
}

func validateCredentials(email, pw string, minLen int) error {
	const op = "register"

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return failure.New(failure.InvalidInput, op, "unable to validate email address: invalid format")
	}
	if pw == "" {
		return failure.New(failure.InvalidInput, op, "password is required")
	}
	if len(pw) < minLen {
		return failure.New(failure.InvalidInput, op,
			fmt.Sprintf("password should be at least %d characters", minLen))
	}
	return nil
}
