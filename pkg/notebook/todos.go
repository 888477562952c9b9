package notebook

import (
	"context"
	"fmt"
	"time"

	"github.com/txn2/ai-notebook/pkg/table"
)

// ListTodoLists returns the user's lists, most recently updated first,
// each with its items newest first.
func (s *Service) ListTodoLists(ctx context.Context) ([]TodoList, error) {
	recs, err := s.store.SelectAll(ctx, table.TodoLists)
	if err != nil {
		return nil, fmt.Errorf("listing todo lists: %w", err)
	}
	lists, err := decodeAll[TodoList](recs)
	if err != nil {
		return nil, err
	}

	itemRecs, err := s.store.SelectAll(ctx, table.TodoItems)
	if err != nil {
		return nil, fmt.Errorf("listing todo items: %w", err)
	}
	items, err := decodeAll[TodoItem](itemRecs)
	if err != nil {
		return nil, err
	}
	newestFirst(items, func(i TodoItem) time.Time { return i.CreatedAt })

	byList := make(map[string][]TodoItem, len(lists))
	for _, it := range items {
		byList[it.TodoListID] = append(byList[it.TodoListID], it)
	}
	for i := range lists {
		lists[i].Items = byList[lists[i].ID]
		if lists[i].Items == nil {
			lists[i].Items = []TodoItem{}
		}
	}

	newestFirst(lists, func(l TodoList) time.Time { return l.UpdatedAt })
	return lists, nil
}

// CreateTodoList stores a new, empty list.
func (s *Service) CreateTodoList(ctx context.Context, title string) (*TodoList, error) {
	if err := required("create_todo_list", "title", title); err != nil {
		return nil, err
	}
	rec, err := s.store.Insert(ctx, table.TodoLists, map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("creating todo list: %w", err)
	}
	l, err := decode[TodoList](rec)
	if err != nil {
		return nil, err
	}
	l.Items = []TodoItem{}
	return &l, nil
}

// AddTodoItem appends an item to list listID and marks the list updated.
func (s *Service) AddTodoItem(ctx context.Context, listID, text string) (*TodoItem, error) {
	if err := required("add_todo_item", "text", text); err != nil {
		return nil, err
	}
	ok, err := s.exists(ctx, table.TodoLists, listID)
	if err != nil {
		return nil, fmt.Errorf("adding todo item: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("adding todo item: list %s: %w", listID, ErrNotFound)
	}

	rec, err := s.store.Insert(ctx, table.TodoItems, map[string]any{
		"todo_list_id": listID,
		"text":         text,
		"completed":    false,
	})
	if err != nil {
		return nil, fmt.Errorf("adding todo item: %w", err)
	}
	s.touch(ctx, table.TodoLists, listID)

	it, err := decode[TodoItem](rec)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateTodoItem applies update to item id.
func (s *Service) UpdateTodoItem(ctx context.Context, id string, update TodoItemUpdate) (*TodoItem, error) {
	rec, err := s.update(ctx, table.TodoItems, id, update)
	if err != nil {
		return nil, fmt.Errorf("updating todo item: %w", err)
	}
	s.touch(ctx, table.TodoLists, rec.String("todo_list_id"))

	it, err := decode[TodoItem](rec)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// DeleteTodoItem removes item id.
func (s *Service) DeleteTodoItem(ctx context.Context, id string) error {
	if err := s.store.DeleteWhere(ctx, table.TodoItems, table.FieldID, id); err != nil {
		return fmt.Errorf("deleting todo item: %w", err)
	}
	return nil
}

// DeleteTodoList removes list id and its items.
func (s *Service) DeleteTodoList(ctx context.Context, id string) error {
	if err := s.store.DeleteWhere(ctx, table.TodoItems, "todo_list_id", id); err != nil {
		return fmt.Errorf("deleting todo list items: %w", err)
	}
	if err := s.store.DeleteWhere(ctx, table.TodoLists, table.FieldID, id); err != nil {
		return fmt.Errorf("deleting todo list: %w", err)
	}
	return nil
}

// touch refreshes updated_at of a parent record. Failures only cost
// ordering accuracy, so they are logged.
func (s *Service) touch(ctx context.Context, tbl, id string) {
	if id == "" {
		return
	}
	if _, err := s.store.Update(ctx, tbl, id, map[string]any{}); err != nil {
		s.logger.Warn("refreshing updated_at failed", "table", tbl, "id", id, "error", err)
	}
}
