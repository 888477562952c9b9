package notebook

import (
	"context"
	"fmt"
	"time"

	"github.com/txn2/ai-notebook/pkg/table"
)

// projectOwned lists the tables whose rows reference a project.
var projectOwned = []string{
	table.ProjectTasks,
	table.DailyReports,
	table.WeeklyReports,
	table.ReportTemplates,
}

// ListProjects returns the user's projects, most recently updated first.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	recs, err := s.store.SelectAll(ctx, table.Projects)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	projects, err := decodeAll[Project](recs)
	if err != nil {
		return nil, err
	}
	newestFirst(projects, func(p Project) time.Time { return p.UpdatedAt })
	return projects, nil
}

// CreateProject stores a new project.
func (s *Service) CreateProject(ctx context.Context, name string) (*Project, error) {
	if err := required("create_project", "name", name); err != nil {
		return nil, err
	}
	rec, err := s.store.Insert(ctx, table.Projects, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	p, err := decode[Project](rec)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RenameProject changes the name of project id.
func (s *Service) RenameProject(ctx context.Context, id, name string) (*Project, error) {
	if err := required("rename_project", "name", name); err != nil {
		return nil, err
	}
	rec, err := s.update(ctx, table.Projects, id, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("renaming project: %w", err)
	}
	p, err := decode[Project](rec)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes project id with its tasks, reports and templates.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	for _, tbl := range projectOwned {
		if err := s.store.DeleteWhere(ctx, tbl, "project_id", id); err != nil {
			return fmt.Errorf("deleting project %s: %w", tbl, err)
		}
	}
	if err := s.store.DeleteWhere(ctx, table.Projects, table.FieldID, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	s.logger.Debug("project deleted", "project_id", id)
	return nil
}

// ListTasks returns tasks, newest first. A non-empty projectID limits the
// result to that project.
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]ProjectTask, error) {
	recs, err := s.list(ctx, table.ProjectTasks, "project_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks, err := decodeAll[ProjectTask](recs)
	if err != nil {
		return nil, err
	}
	newestFirst(tasks, func(t ProjectTask) time.Time { return t.CreatedAt })
	return tasks, nil
}

// CreateTask stores a new task. The project must exist.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*ProjectTask, error) {
	const op = "create_task"
	if err := required(op, "title", in.Title); err != nil {
		return nil, err
	}
	if err := required(op, "project_id", in.ProjectID); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	ok, err := s.exists(ctx, table.Projects, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("creating task: project %s: %w", in.ProjectID, ErrNotFound)
	}

	rec, err := s.insert(ctx, table.ProjectTasks, in)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	t, err := decode[ProjectTask](rec)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask replaces the editable fields of task id. The project and
// parent of a task cannot be changed.
func (s *Service) UpdateTask(ctx context.Context, id string, in TaskInput) (*ProjectTask, error) {
	rec, err := s.update(ctx, table.ProjectTasks, id, map[string]any{
		"title":        in.Title,
		"description":  in.Description,
		"due_date":     in.DueDate,
		"priority":     in.Priority,
		"assignee":     in.Assignee,
		"is_completed": in.IsCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	t, err := decode[ProjectTask](rec)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask removes task id and all of its subtasks.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	pending := []string{id}
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		children, err := s.store.SelectWhere(ctx, table.ProjectTasks, "parent_id", cur)
		if err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		for _, c := range children {
			pending = append(pending, c.ID())
		}
		if err := s.store.DeleteWhere(ctx, table.ProjectTasks, table.FieldID, cur); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
	}
	return nil
}
