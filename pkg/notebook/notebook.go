// Package notebook maps table records to the application's view models
// and implements the notes, projects, to-do and report operations on top
// of a table.Store.
package notebook

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/table"
)

// ErrNotFound is returned when the addressed item does not exist for the
// signed-in user.
var ErrNotFound = errors.New("not found")

// Service is the storage facade used by the application.
type Service struct {
	store  table.Store
	logger *slog.Logger
}

// New creates a Service over store.
func New(store table.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// decode converts a record to a view model.
func decode[T any](rec table.Record) (T, error) {
	var out T
	data, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("encoding record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding record %s: %w", rec.ID(), err)
	}
	return out, nil
}

func decodeAll[T any](recs []table.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// fields converts an input struct to record fields.
func fields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	return out, nil
}

func (s *Service) list(ctx context.Context, tbl, field, value string) ([]table.Record, error) {
	if field == "" || value == "" {
		return s.store.SelectAll(ctx, tbl)
	}
	return s.store.SelectWhere(ctx, tbl, field, value)
}

func (s *Service) insert(ctx context.Context, tbl string, input any) (table.Record, error) {
	f, err := fields(input)
	if err != nil {
		return nil, err
	}
	return s.store.Insert(ctx, tbl, f)
}

// update applies input to id and returns the updated record or ErrNotFound.
func (s *Service) update(ctx context.Context, tbl, id string, input any) (table.Record, error) {
	f, err := fields(input)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.Update(ctx, tbl, id, f)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", tbl, id, ErrNotFound)
	}
	return recs[0], nil
}

func (s *Service) exists(ctx context.Context, tbl, id string) (bool, error) {
	recs, err := s.store.SelectWhere(ctx, tbl, table.FieldID, id)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

func newestFirst[T any](items []T, key func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return key(b).Compare(key(a))
	})
}

func descendingBy[T any](items []T, key func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(key(b), key(a))
	})
}

func required(op, field, value string) error {
	if value == "" {
		return failure.New(failure.InvalidInput, op, field+" is required")
	}
	return nil
}
