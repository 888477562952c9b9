package table

import (
	"context"
	"maps"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. Records are kept in
// insertion order and vanish with the process.
type MemoryStore struct {
	ids IdentitySource
	now func() time.Time

	mu     sync.RWMutex
	tables map[string][]Record
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the time source used for created_at and updated_at.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty store scoped by ids.
func NewMemoryStore(ids IdentitySource, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ids:    ids,
		now:    time.Now,
		tables: make(map[string][]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectAll returns the caller's records in insertion order.
func (s *MemoryStore) SelectAll(_ context.Context, table string) ([]Record, error) {
	const op = "select"
	uid, err := s.begin(op, table)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Record{}
	for _, r := range s.tables[table] {
		if r[FieldUserID] == uid {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

// SelectWhere returns the caller's records whose field equals value.
func (s *MemoryStore) SelectWhere(_ context.Context, table, field string, value any) ([]Record, error) {
	const op = "select"
	uid, err := s.begin(op, table)
	if err != nil {
		return nil, err
	}
	want, err := filterValue(op, field, value)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Record{}
	for _, r := range s.tables[table] {
		if r[FieldUserID] == uid && matches(r, field, want) {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

// Insert appends a new record owned by the caller.
func (s *MemoryStore) Insert(_ context.Context, table string, fields map[string]any) (Record, error) {
	const op = "insert"
	uid, err := s.begin(op, table)
	if err != nil {
		return nil, err
	}
	clean, err := Normalize(op, fields)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	rec := Record(clean)
	rec[FieldID] = uuid.NewString()
	rec[FieldUserID] = uid
	rec[FieldCreatedAt] = now
	rec[FieldUpdatedAt] = now

	s.mu.Lock()
	s.tables[table] = append(s.tables[table], rec)
	s.mu.Unlock()

	return copyRecord(rec), nil
}

// Update merges fields into the caller's record id.
func (s *MemoryStore) Update(_ context.Context, table, id string, fields map[string]any) ([]Record, error) {
	const op = "update"
	uid, err := s.begin(op, table)
	if err != nil {
		return nil, err
	}
	clean, err := Normalize(op, fields)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.tables[table] {
		if r[FieldID] == id && r[FieldUserID] == uid {
			maps.Copy(r, clean)
			r[FieldUpdatedAt] = s.timestamp()
			return []Record{copyRecord(r)}, nil
		}
	}
	return []Record{}, nil
}

// DeleteWhere removes the caller's records whose field equals value.
func (s *MemoryStore) DeleteWhere(_ context.Context, table, field string, value any) error {
	const op = "delete"
	uid, err := s.begin(op, table)
	if err != nil {
		return err
	}
	want, err := filterValue(op, field, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	kept := rows[:0:0]
	for _, r := range rows {
		if r[FieldUserID] == uid && matches(r, field, want) {
			continue
		}
		kept = append(kept, r)
	}
	s.tables[table] = kept
	return nil
}

func (s *MemoryStore) begin(op, table string) (string, error) {
	uid, err := Owner(s.ids, op)
	if err != nil {
		return "", err
	}
	if err := ValidateName(op, "table", table); err != nil {
		return "", err
	}
	return uid, nil
}

// timestamp returns now as an RFC 3339 string in UTC with fixed-width
// fractional seconds, so timestamps sort lexically.
func (s *MemoryStore) timestamp() string {
	return s.now().UTC().Format(TimestampLayout)
}

func filterValue(op, field string, value any) (any, error) {
	if err := ValidateName(op, "field", field); err != nil {
		return nil, err
	}
	return NormalizeValue(op, value)
}

func matches(r Record, field string, want any) bool {
	got, ok := r[field]
	return ok && reflect.DeepEqual(got, want)
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = copyValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = copyValue(vv)
		}
		return s
	default:
		return v
	}
}

var _ Store = (*MemoryStore)(nil)
