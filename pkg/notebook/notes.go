package notebook

import (
	"context"
	"fmt"
	"time"

	"github.com/txn2/ai-notebook/pkg/table"
)

// ListNotes returns the user's notes, most recently updated first.
func (s *Service) ListNotes(ctx context.Context) ([]Note, error) {
	recs, err := s.store.SelectAll(ctx, table.Notes)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	notes, err := decodeAll[Note](recs)
	if err != nil {
		return nil, err
	}
	newestFirst(notes, func(n Note) time.Time { return n.UpdatedAt })
	return notes, nil
}

// CreateNote stores a new note.
func (s *Service) CreateNote(ctx context.Context, in NoteInput) (*Note, error) {
	rec, err := s.insert(ctx, table.Notes, in)
	if err != nil {
		return nil, fmt.Errorf("creating note: %w", err)
	}
	n, err := decode[Note](rec)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote replaces the editable fields of note id.
func (s *Service) UpdateNote(ctx context.Context, id string, in NoteInput) (*Note, error) {
	rec, err := s.update(ctx, table.Notes, id, in)
	if err != nil {
		return nil, fmt.Errorf("updating note: %w", err)
	}
	n, err := decode[Note](rec)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote removes note id. Deleting a missing note succeeds.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := s.store.DeleteWhere(ctx, table.Notes, table.FieldID, id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return nil
}
