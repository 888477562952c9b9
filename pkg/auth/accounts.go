package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/txn2/ai-notebook/pkg/failure"
)

// storedAccount is the persisted form of an account.
type storedAccount struct {
	User         Identity `json:"user"`
	PasswordHash string   `json:"password_hash"`
}

func encodeAccounts(accounts map[string]*account) ([]byte, error) {
	list := make([]storedAccount, 0, len(accounts))
	for _, acct := range accounts {
		list = append(list, storedAccount{User: acct.identity, PasswordHash: acct.passwordHash})
	}
	slices.SortFunc(list, func(a, b storedAccount) int {
		if c := a.User.CreatedAt.Compare(b.User.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.User.Email, b.User.Email)
	})
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encoding accounts: %w", err)
	}
	return data, nil
}

func decodeAccounts(data []byte) (map[string]*account, error) {
	var list []storedAccount
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}
	out := make(map[string]*account, len(list))
	for _, s := range list {
		email := normalizeEmail(s.User.Email)
		if email == "" || s.User.ID == "" {
			continue
		}
		s.User.Email = email
		out[email] = &account{identity: s.User, passwordHash: s.PasswordHash}
	}
	return out, nil
}

// loadAccounts reads the persisted account set. A missing blob yields an
// empty set.
func (e *Emulator) loadAccounts(ctx context.Context) (map[string]*account, error) {
	data, err := e.store.Get(ctx, e.accountsKey)
	if err != nil {
		return nil, failure.Wrap(failure.StorageUnavailable, "load_accounts", err)
	}
	if data == nil {
		return map[string]*account{}, nil
	}
	return decodeAccounts(data)
}

// mergeAccounts adds persisted accounts that are not yet known in memory,
// so registrations made by another process sharing the store are honored.
// Callers hold opMu.
func (e *Emulator) mergeAccounts(ctx context.Context) {
	persisted, err := e.loadAccounts(ctx)
	if err != nil {
		e.logger.Warn("reading persisted accounts failed", "mode", e.store.Mode(), "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for email, acct := range persisted {
		if _, ok := e.accounts[email]; !ok {
			e.accounts[email] = acct
		}
	}
}

// saveAccounts writes the account set. Callers hold opMu.
func (e *Emulator) saveAccounts(ctx context.Context, op string) error {
	e.mu.RLock()
	data, err := encodeAccounts(e.accounts)
	e.mu.RUnlock()
	if err == nil {
		err = e.store.Set(ctx, e.accountsKey, data)
	}
	if err != nil {
		e.logger.Warn("persisting accounts failed, accounts kept in memory only",
			"mode", e.store.Mode(), "error", err)
		return failure.Wrap(failure.StorageUnavailable, op, err)
	}
	return nil
}

// adoptSessionIdentity makes sure the identity behind a restored session
// owns its email, even when the account set was lost. Such an account has
// no password and cannot log in again, but its email stays taken.
func (e *Emulator) adoptSessionIdentity(sess *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()

	email := normalizeEmail(sess.User.Email)
	if _, ok := e.accounts[email]; ok {
		return
	}
	e.logger.Warn("restored session has no persisted account", "user_id", sess.User.ID, "email", email)
	e.accounts[email] = &account{identity: sess.User}
}
