package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/table"
)

const (
	pgTestUser  = "user-a"
	pgTestRecID = "rec-1"
)

type fakeIdentity struct{ uid string }

func (f *fakeIdentity) CurrentUserID() (string, bool) { return f.uid, f.uid != "" }

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T, uid string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, &fakeIdentity{uid: uid})
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows(recordColumns)
}

func TestSelectAll(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectQuery(`SELECT id, user_id, data, created_at, updated_at FROM records WHERE table_name = \$1 AND user_id = \$2 ORDER BY seq`).
		WithArgs(table.Notes, pgTestUser).
		WillReturnRows(recordRows().
			AddRow(pgTestRecID, pgTestUser, []byte(`{"title":"T"}`), fixedNow, fixedNow).
			AddRow("rec-2", pgTestUser, []byte(`{}`), fixedNow, fixedNow.Add(time.Second)))

	got, err := s.SelectAll(context.Background(), table.Notes)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, pgTestRecID, got[0].ID())
	assert.Equal(t, "T", got[0].String("title"))
	assert.Equal(t, pgTestUser, got[0].String(table.FieldUserID))
	assert.Equal(t, "2026-10-15T09:30:00.000000Z", got[0].String(table.FieldCreatedAt))
	assert.Equal(t, "2026-10-15T09:30:01.000000Z", got[1].String(table.FieldUpdatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectAll_NotAuthenticated(t *testing.T) {
	s, mock := newMockStore(t, "")

	_, err := s.SelectAll(context.Background(), table.Notes)
	assert.ErrorIs(t, err, failure.ErrNotAuthenticated)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query issued")
}

func TestSelectAll_DBError(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	_, err := s.SelectAll(context.Background(), table.Notes)
	assert.ErrorIs(t, err, failure.ErrStorageUnavailable)
}

func TestSelectWhere_DataField(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectQuery(`FROM records WHERE table_name = \$1 AND user_id = \$2 AND data -> \$3::text = \$4::jsonb ORDER BY seq`).
		WithArgs(table.ProjectTasks, pgTestUser, "project_id", `"p1"`).
		WillReturnRows(recordRows())

	got, err := s.SelectWhere(context.Background(), table.ProjectTasks, "project_id", "p1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectWhere_OwnerFilterCannotBeWidened(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectQuery(`WHERE table_name = \$1 AND user_id = \$2 AND user_id = \$3`).
		WithArgs(table.Notes, pgTestUser, "user-b").
		WillReturnRows(recordRows())

	got, err := s.SelectWhere(context.Background(), table.Notes, table.FieldUserID, "user-b")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectWhere_InvalidTimestamp(t *testing.T) {
	s, _ := newMockStore(t, pgTestUser)

	_, err := s.SelectWhere(context.Background(), table.Notes, table.FieldCreatedAt, "yesterday")
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestInsert(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectExec(`INSERT INTO records \(id,table_name,user_id,data,created_at,updated_at\) VALUES`).
		WithArgs(sqlmock.AnyArg(), table.Notes, pgTestUser, `{"title":"T"}`, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.Insert(context.Background(), table.Notes, map[string]any{"title": "T", "user_id": "spoofed"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID())
	assert.Equal(t, pgTestUser, rec.String(table.FieldUserID))
	assert.Equal(t, "2026-10-15T09:30:00.000000Z", rec.String(table.FieldCreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectExec("INSERT INTO records").WillReturnError(errors.New("disk full"))

	_, err := s.Insert(context.Background(), table.Notes, map[string]any{"title": "T"})
	assert.ErrorIs(t, err, failure.ErrStorageUnavailable)
}

func TestUpdate_Hit(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)
	created := fixedNow.Add(-time.Hour)

	mock.ExpectQuery(`UPDATE records SET data = data \|\| \$1::jsonb, updated_at = \$2 WHERE table_name = \$3 AND user_id = \$4 AND id = \$5 RETURNING id, user_id, data, created_at, updated_at`).
		WithArgs(`{"title":"T2"}`, fixedNow, table.Notes, pgTestUser, pgTestRecID).
		WillReturnRows(recordRows().AddRow(pgTestRecID, pgTestUser, []byte(`{"title":"T2","content":"c"}`), created, fixedNow))

	got, err := s.Update(context.Background(), table.Notes, pgTestRecID, map[string]any{"title": "T2", "id": "x"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T2", got[0].String("title"))
	assert.Equal(t, "c", got[0].String("content"))
	assert.Equal(t, "2026-10-15T08:30:00.000000Z", got[0].String(table.FieldCreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Miss(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectQuery("UPDATE records").WillReturnRows(recordRows())

	got, err := s.Update(context.Background(), table.Notes, "unknown", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDeleteWhere(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectExec(`DELETE FROM records WHERE table_name = \$1 AND user_id = \$2 AND id = \$3`).
		WithArgs(table.Notes, pgTestUser, pgTestRecID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.DeleteWhere(context.Background(), table.Notes, table.FieldID, pgTestRecID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWhere_DBError(t *testing.T) {
	s, mock := newMockStore(t, pgTestUser)

	mock.ExpectExec("DELETE FROM records").WillReturnError(errors.New("connection reset"))

	err := s.DeleteWhere(context.Background(), table.TodoItems, "todo_list_id", "L1")
	assert.ErrorIs(t, err, failure.ErrStorageUnavailable)
}

func TestFieldPredicate(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    any
		wantSQL  string
		wantArgs []any
	}{
		{"json string", "title", "T", "data -> ?::text = ?::jsonb", []any{"title", `"T"`}},
		{"json number", "rank", 3, "data -> ?::text = ?::jsonb", []any{"rank", "3"}},
		{"json bool", "is_completed", false, "data -> ?::text = ?::jsonb", []any{"is_completed", "false"}},
		{"id column", "id", "r1", "id = ?", []any{"r1"}},
		{"non-string id", "id", 7, "FALSE", nil},
		{"timestamp column", "updated_at", "2026-10-15T09:30:00Z", "updated_at = ?", []any{fixedNow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := fieldPredicate("select", tt.field, tt.value)
			require.NoError(t, err)
			sql, args, err := pred.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
