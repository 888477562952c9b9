package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/ai-notebook/pkg/audit"
)

const (
	testYear        = 2026
	testMonth       = 10
	testCountResult = 42
	testPageLimit   = 25
)

// selectColumns lists the SELECT column names in scan order.
var selectColumns = []string{
	"id", "occurred_at", "event_type", "user_id", "email",
	"success", "detail", "remote_addr",
}

func newTestEvent() audit.Event {
	return audit.Event{
		ID:         "evt-123",
		Timestamp:  time.Date(testYear, testMonth, 15, 10, 30, 0, 0, time.UTC),
		Type:       audit.EventSignedIn,
		UserID:     "user-abc",
		Email:      "alice@example.com",
		Success:    true,
		RemoteAddr: "10.0.0.1:5555",
	}
}

func addEventRow(rows *sqlmock.Rows, event audit.Event) *sqlmock.Rows {
	return rows.AddRow(
		event.ID, event.Timestamp, string(event.Type), event.UserID,
		event.Email, event.Success, event.ErrorMessage, event.RemoteAddr,
	)
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("custom retention", func(t *testing.T) {
		store := New(db, Config{RetentionDays: 30})
		assert.Equal(t, 30, store.retentionDays)
		assert.Equal(t, db, store.db)
	})

	t.Run("default retention when zero", func(t *testing.T) {
		store := New(db, Config{})
		assert.Equal(t, defaultRetentionDays, store.retentionDays)
	})
}

func TestLog(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		store := New(db, Config{})
		event := newTestEvent()

		mock.ExpectExec("INSERT INTO auth_events").WithArgs(
			event.ID, event.Timestamp, "signed_in", event.UserID,
			event.Email, true, "", event.RemoteAddr,
		).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Log(context.Background(), event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		store := New(db, Config{})
		mock.ExpectExec("INSERT INTO auth_events").
			WillReturnError(errors.New("connection refused"))

		err = store.Log(context.Background(), newTestEvent())
		assert.ErrorContains(t, err, "inserting auth event")
		assert.ErrorContains(t, err, "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQuery_NoFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	event := newTestEvent()
	mock.ExpectQuery("SELECT .+ FROM auth_events ORDER BY occurred_at DESC").
		WillReturnRows(addEventRow(sqlmock.NewRows(selectColumns), event))

	results, err := store.Query(context.Background(), audit.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, event, results[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_AllFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})

	start := time.Date(testYear, testMonth, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(testYear, testMonth, 31, 23, 59, 59, 0, time.UTC)
	failed := false

	failedEvent := newTestEvent()
	failedEvent.Type = audit.EventLoginFailed
	failedEvent.Success = false
	failedEvent.ErrorMessage = "invalid login credentials"

	mock.ExpectQuery("SELECT .+ FROM auth_events WHERE").WithArgs(
		start, end, "login_failed", "user-abc", "alice@example.com", false,
	).WillReturnRows(addEventRow(sqlmock.NewRows(selectColumns), failedEvent))

	results, err := store.Query(context.Background(), audit.QueryFilter{
		StartTime: &start,
		EndTime:   &end,
		Type:      audit.EventLoginFailed,
		UserID:    "user-abc",
		Email:     "alice@example.com",
		Success:   &failed,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, failedEvent, results[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_WithLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectQuery("SELECT .+ FROM auth_events .*LIMIT").
		WillReturnRows(sqlmock.NewRows(selectColumns))

	results, err := store.Query(context.Background(), audit.QueryFilter{Limit: testPageLimit})
	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Errors(t *testing.T) {
	t.Run("db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		store := New(db, Config{})
		mock.ExpectQuery("SELECT .+ FROM auth_events").
			WillReturnError(errors.New("db unavailable"))

		results, err := store.Query(context.Background(), audit.QueryFilter{})
		assert.Nil(t, results)
		assert.ErrorContains(t, err, "querying auth events")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scan error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		store := New(db, Config{})
		mock.ExpectQuery("SELECT .+ FROM auth_events").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("only-one-column"))

		_, err = store.Query(context.Background(), audit.QueryFilter{})
		assert.ErrorContains(t, err, "scanning auth event row")
	})
}

func TestCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM auth_events WHERE event_type = \$1`).
		WithArgs("signed_in").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(testCountResult))

	count, err := store.Count(context.Background(), audit.QueryFilter{Type: audit.EventSignedIn})
	require.NoError(t, err)
	assert.Equal(t, testCountResult, count)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM auth_events`).
		WillReturnError(errors.New("timeout"))
	_, err = store.Count(context.Background(), audit.QueryFilter{})
	assert.ErrorContains(t, err, "counting auth events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{RetentionDays: 30})
	now := time.Date(testYear, testMonth, 31, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	mock.ExpectExec("DELETE FROM auth_events WHERE occurred_at").
		WithArgs(time.Date(testYear, testMonth, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	assert.NoError(t, store.Cleanup(context.Background()))

	mock.ExpectExec("DELETE FROM auth_events").
		WillReturnError(errors.New("cleanup failed"))
	assert.ErrorContains(t, store.Cleanup(context.Background()), "cleaning up auth events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_NilCancel_NoPanic(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.NoError(t, New(db, Config{}).Close())
}

func TestStartCleanupRoutine(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{RetentionDays: 7})

	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec("DELETE FROM auth_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM auth_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store.StartCleanupRoutine(10 * time.Millisecond)

	// Let at least one cleanup tick fire.
	time.Sleep(50 * time.Millisecond)

	assert.NoError(t, store.Close())
}
