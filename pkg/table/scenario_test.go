package table_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/ai-notebook/pkg/auth"
	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/password"
	"github.com/txn2/ai-notebook/pkg/table"
)

func TestTwoUsersShareOneStore(t *testing.T) {
	ctx := context.Background()
	emu, err := auth.New(ctx, auth.Config{
		PasswordParams: &password.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	store := table.NewMemoryStore(emu)

	alice, _, err := emu.Register(ctx, "alice@x.io", "pw1", auth.Profile{})
	require.NoError(t, err)

	note, err := store.Insert(ctx, table.Notes, map[string]any{"title": "T", "content": "C"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, note.String(table.FieldUserID))
	assert.NotEmpty(t, note.ID())
	assert.NotEmpty(t, note.String(table.FieldCreatedAt))

	require.NoError(t, emu.Logout(ctx))
	_, err = store.SelectAll(ctx, table.Notes)
	assert.ErrorIs(t, err, failure.ErrNotAuthenticated)

	_, _, err = emu.Register(ctx, "bob@x.io", "pw2", auth.Profile{})
	require.NoError(t, err)

	notes, err := store.SelectAll(ctx, table.Notes)
	require.NoError(t, err)
	assert.Empty(t, notes)

	updated, err := store.Update(ctx, table.Notes, note.ID(), map[string]any{"title": "X"})
	require.NoError(t, err)
	assert.Empty(t, updated)

	require.NoError(t, emu.Logout(ctx))
	_, _, err = emu.Login(ctx, "alice@x.io", "pw1")
	require.NoError(t, err)

	notes, err = store.SelectAll(ctx, table.Notes)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "T", notes[0].String("title"))
	assert.Equal(t, "C", notes[0].String("content"))
}
