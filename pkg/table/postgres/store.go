// Package postgres provides the database backend for the table store.
// All application tables share one records table keyed by table_name and
// owner; caller fields live in a jsonb column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/table"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// recordColumns lists columns returned by record queries.
var recordColumns = []string{"id", "user_id", "data", "created_at", "updated_at"}

// Store implements table.Store using PostgreSQL.
type Store struct {
	db  *sql.DB
	ids table.IdentitySource
	now func() time.Time
}

// New creates a PostgreSQL table store scoped by ids.
func New(db *sql.DB, ids table.IdentitySource) *Store {
	return &Store{db: db, ids: ids, now: time.Now}
}

// SelectAll returns the caller's records in insertion order.
func (s *Store) SelectAll(ctx context.Context, tbl string) ([]table.Record, error) {
	const op = "select"
	uid, err := s.begin(op, tbl)
	if err != nil {
		return nil, err
	}

	qb := ownedBy(psq.Select(recordColumns...).From("records"), tbl, uid).OrderBy("seq")
	return s.query(ctx, qb)
}

// SelectWhere returns the caller's records whose field equals value.
func (s *Store) SelectWhere(ctx context.Context, tbl, field string, value any) ([]table.Record, error) {
	const op = "select"
	uid, err := s.begin(op, tbl)
	if err != nil {
		return nil, err
	}
	pred, err := fieldPredicate(op, field, value)
	if err != nil {
		return nil, err
	}

	qb := ownedBy(psq.Select(recordColumns...).From("records"), tbl, uid).Where(pred).OrderBy("seq")
	return s.query(ctx, qb)
}

// Insert stores a new record owned by the caller.
func (s *Store) Insert(ctx context.Context, tbl string, fields map[string]any) (table.Record, error) {
	const op = "insert"
	uid, err := s.begin(op, tbl)
	if err != nil {
		return nil, err
	}
	clean, err := table.Normalize(op, fields)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}

	id := uuid.NewString()
	now := s.timestamp()

	query, args, err := psq.Insert("records").
		Columns("id", "table_name", "user_id", "data", "created_at", "updated_at").
		Values(id, tbl, uid, string(data), now, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, failure.Wrap(failure.StorageUnavailable, op, fmt.Errorf("inserting record: %w", err))
	}

	rec := table.Record(clean)
	rec[table.FieldID] = id
	rec[table.FieldUserID] = uid
	rec[table.FieldCreatedAt] = now.Format(table.TimestampLayout)
	rec[table.FieldUpdatedAt] = now.Format(table.TimestampLayout)
	return rec, nil
}

// Update merges fields into the caller's record id with jsonb concatenation.
func (s *Store) Update(ctx context.Context, tbl, id string, fields map[string]any) ([]table.Record, error) {
	const op = "update"
	uid, err := s.begin(op, tbl)
	if err != nil {
		return nil, err
	}
	clean, err := table.Normalize(op, fields)
	if err != nil {
		return nil, err
	}
	patch, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("marshaling patch: %w", err)
	}

	query, args, err := psq.Update("records").
		Set("data", sq.Expr("data || ?::jsonb", string(patch))).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"table_name": tbl}).
		Where(sq.Eq{"user_id": uid}).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(recordColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}
	return s.rows(ctx, op, query, args)
}

// DeleteWhere removes the caller's records whose field equals value.
func (s *Store) DeleteWhere(ctx context.Context, tbl, field string, value any) error {
	const op = "delete"
	uid, err := s.begin(op, tbl)
	if err != nil {
		return err
	}
	pred, err := fieldPredicate(op, field, value)
	if err != nil {
		return err
	}

	query, args, err := psq.Delete("records").
		Where(sq.Eq{"table_name": tbl}).
		Where(sq.Eq{"user_id": uid}).
		Where(pred).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return failure.Wrap(failure.StorageUnavailable, op, fmt.Errorf("deleting records: %w", err))
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) begin(op, tbl string) (string, error) {
	uid, err := table.Owner(s.ids, op)
	if err != nil {
		return "", err
	}
	if err := table.ValidateName(op, "table", tbl); err != nil {
		return "", err
	}
	return uid, nil
}

// timestamp returns now at the database's microsecond precision.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func ownedBy(qb sq.SelectBuilder, tbl, uid string) sq.SelectBuilder {
	return qb.Where(sq.Eq{"table_name": tbl}).Where(sq.Eq{"user_id": uid})
}

// fieldPredicate builds the equality filter for field. Reserved fields map
// to columns; everything else is compared inside the jsonb document.
func fieldPredicate(op, field string, value any) (sq.Sqlizer, error) {
	if err := table.ValidateName(op, "field", field); err != nil {
		return nil, err
	}
	v, err := table.NormalizeValue(op, value)
	if err != nil {
		return nil, err
	}

	switch field {
	case table.FieldID, table.FieldUserID:
		s, ok := v.(string)
		if !ok {
			return sq.Expr("FALSE"), nil
		}
		return sq.Eq{field: s}, nil
	case table.FieldCreatedAt, table.FieldUpdatedAt:
		s, _ := v.(string)
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, failure.New(failure.InvalidInput, op, fmt.Sprintf("%s must be an RFC 3339 timestamp", field))
		}
		return sq.Eq{field: ts.UTC()}, nil
	}

	doc, err := json.Marshal(v)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidInput, op, err)
	}
	return sq.Expr("data -> ?::text = ?::jsonb", field, string(doc)), nil
}

func (s *Store) query(ctx context.Context, qb sq.SelectBuilder) ([]table.Record, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	return s.rows(ctx, "select", query, args)
}

func (*Store) scanRecord(rows *sql.Rows) (table.Record, error) {
	var (
		id, uid              string
		data                 []byte
		createdAt, updatedAt time.Time
	)
	if err := rows.Scan(&id, &uid, &data, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec := table.Record{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", id, err)
		}
	}
	rec[table.FieldID] = id
	rec[table.FieldUserID] = uid
	rec[table.FieldCreatedAt] = createdAt.UTC().Format(table.TimestampLayout)
	rec[table.FieldUpdatedAt] = updatedAt.UTC().Format(table.TimestampLayout)
	return rec, nil
}

func (s *Store) rows(ctx context.Context, op, query string, args []any) ([]table.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, failure.Wrap(failure.StorageUnavailable, op, fmt.Errorf("querying records: %w", err))
	}
	defer func() { _ = rows.Close() }()

	out := []table.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}
	return out, nil
}

var _ table.Store = (*Store)(nil)
