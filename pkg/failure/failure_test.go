package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(InvalidCredentials, "login", "invalid login credentials")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrDuplicateIdentity)
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("saving session: %w", Wrap(StorageUnavailable, "login", cause))

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StorageUnavailable, KindOf(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: NotAuthenticated}, "not_authenticated"},
		{"op and msg", New(DuplicateIdentity, "register", "user already registered"), "register: user already registered"},
		{"wrapped", Wrap(StorageUnavailable, "logout", errors.New("eio")), "logout: storage_unavailable: eio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
