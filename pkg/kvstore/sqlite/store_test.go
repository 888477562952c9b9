package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/txn2/ai-notebook/pkg/kvstore"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	store, err := Open(":memory:")
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StoreSuite) TestGetAbsent() {
	v, err := s.store.Get(s.ctx, "missing")
	s.NoError(err)
	s.Nil(v)
}

func (s *StoreSuite) TestSetGetOverwrite() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("one")))
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("two")))

	v, err := s.store.Get(s.ctx, "k")
	s.NoError(err)
	s.Equal([]byte("two"), v)
}

func (s *StoreSuite) TestRemoveIsIdempotent() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("v")))
	s.NoError(s.store.Remove(s.ctx, "k"))
	s.NoError(s.store.Remove(s.ctx, "k"))

	v, err := s.store.Get(s.ctx, "k")
	s.NoError(err)
	s.Nil(v)
}

func (s *StoreSuite) TestModeAndPing() {
	s.Equal(kvstore.ModeSQLite, s.store.Mode())
	s.NoError(s.store.Ping(s.ctx))
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notebook.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "session", []byte(`{"user":"alice"}`)))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	v, err := second.Get(ctx, "session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":"alice"}`, string(v))
}
