package notebook

import (
	"context"
	"fmt"
	"time"

	"github.com/txn2/ai-notebook/pkg/failure"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

// Snapshot is a portable copy of one user's data.
type Snapshot struct {
	Version         int              `json:"version"`
	ExportedAt      time.Time        `json:"exported_at"`
	Notes           []Note           `json:"notes"`
	Projects        []Project        `json:"projects"`
	Tasks           []ProjectTask    `json:"tasks"`
	TodoLists       []TodoList       `json:"todo_lists"`
	DailyReports    []DailyReport    `json:"daily_reports"`
	WeeklyReports   []WeeklyReport   `json:"weekly_reports"`
	ReportTemplates []ReportTemplate `json:"report_templates"`
}

// ImportResult counts the records created by Import.
type ImportResult struct {
	Notes           int `json:"notes"`
	Projects        int `json:"projects"`
	Tasks           int `json:"tasks"`
	TodoLists       int `json:"todo_lists"`
	TodoItems       int `json:"todo_items"`
	DailyReports    int `json:"daily_reports"`
	WeeklyReports   int `json:"weekly_reports"`
	ReportTemplates int `json:"report_templates"`
}

// Export collects all of the signed-in user's data.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Version: SnapshotVersion, ExportedAt: time.Now().UTC()}
	var err error

	if snap.Notes, err = s.ListNotes(ctx); err != nil {
		return nil, err
	}
	if snap.Projects, err = s.ListProjects(ctx); err != nil {
		return nil, err
	}
	if snap.Tasks, err = s.ListTasks(ctx, ""); err != nil {
		return nil, err
	}
	if snap.TodoLists, err = s.ListTodoLists(ctx); err != nil {
		return nil, err
	}
	if snap.DailyReports, err = s.ListDailyReports(ctx, ""); err != nil {
		return nil, err
	}
	if snap.WeeklyReports, err = s.ListWeeklyReports(ctx, ""); err != nil {
		return nil, err
	}
	if snap.ReportTemplates, err = s.ListReportTemplates(ctx, ""); err != nil {
		return nil, err
	}
	return snap, nil
}

// Import re-creates snap under the signed-in user. Every record gets a new
// id; references between records are rewritten to the new ids. Records
// that reference something missing from snap are skipped.
func (s *Service) Import(ctx context.Context, snap *Snapshot) (*ImportResult, error) {
	const op = "import"
	if snap == nil || snap.Version != SnapshotVersion {
		return nil, failure.New(failure.InvalidInput, op, fmt.Sprintf("unsupported snapshot version (want %d)", SnapshotVersion))
	}

	res := &ImportResult{}

	for _, n := range snap.Notes {
		if _, err := s.CreateNote(ctx, NoteInput{Title: n.Title, Content: n.Content, Summary: n.Summary}); err != nil {
			return res, err
		}
		res.Notes++
	}

	projectIDs := make(map[string]string, len(snap.Projects))
	for _, p := range snap.Projects {
		created, err := s.CreateProject(ctx, p.Name)
		if err != nil {
			return res, err
		}
		projectIDs[p.ID] = created.ID
		res.Projects++
	}

	if err := s.importTasks(ctx, snap.Tasks, projectIDs, res); err != nil {
		return res, err
	}

	for _, l := range snap.TodoLists {
		created, err := s.CreateTodoList(ctx, l.Title)
		if err != nil {
			return res, err
		}
		res.TodoLists++
		for _, it := range l.Items {
			item, err := s.AddTodoItem(ctx, created.ID, it.Text)
			if err != nil {
				return res, err
			}
			if it.Completed {
				done := true
				if _, err := s.UpdateTodoItem(ctx, item.ID, TodoItemUpdate{Completed: &done}); err != nil {
					return res, err
				}
			}
			res.TodoItems++
		}
	}

	for _, r := range snap.DailyReports {
		pid, ok := projectIDs[r.ProjectID]
		if !ok {
			continue
		}
		if _, err := s.SaveDailyReport(ctx, DailyReportInput{
			ProjectID: pid, Date: r.Date, Tasks: r.Tasks, Progress: r.Progress, Issues: r.Issues, Plans: r.Plans,
		}); err != nil {
			return res, err
		}
		res.DailyReports++
	}

	for _, r := range snap.WeeklyReports {
		pid, ok := projectIDs[r.ProjectID]
		if !ok {
			continue
		}
		if _, err := s.SaveWeeklyReport(ctx, WeeklyReportInput{
			ProjectID: pid, WeekStart: r.WeekStart, WeekEnd: r.WeekEnd, Summary: r.Summary,
			Achievements: r.Achievements, Challenges: r.Challenges, NextWeekPlans: r.NextWeekPlans,
		}); err != nil {
			return res, err
		}
		res.WeeklyReports++
	}

	for _, t := range snap.ReportTemplates {
		in := TemplateInput{Name: t.Name, Type: t.Type, Content: t.Content}
		if t.ProjectID != "" {
			pid, ok := projectIDs[t.ProjectID]
			if !ok {
				continue
			}
			in.ProjectID = pid
		}
		if _, err := s.SaveReportTemplate(ctx, in); err != nil {
			return res, err
		}
		res.ReportTemplates++
	}

	s.logger.Info("snapshot imported",
		"notes", res.Notes, "projects", res.Projects, "tasks", res.Tasks, "todo_lists", res.TodoLists)
	return res, nil
}

// importTasks creates parents before children so parent ids can be remapped.
func (s *Service) importTasks(ctx context.Context, tasks []ProjectTask, projectIDs map[string]string, res *ImportResult) error {
	taskIDs := make(map[string]string, len(tasks))
	remaining := tasks
	for len(remaining) > 0 {
		var next []ProjectTask
		for _, t := range remaining {
			pid, ok := projectIDs[t.ProjectID]
			if !ok {
				continue
			}
			parent := ""
			if t.ParentID != "" {
				if parent, ok = taskIDs[t.ParentID]; !ok {
					next = append(next, t)
					continue
				}
			}
			created, err := s.CreateTask(ctx, TaskInput{
				ProjectID: pid, ParentID: parent, Title: t.Title, Description: t.Description,
				DueDate: t.DueDate, Priority: t.Priority, Assignee: t.Assignee, IsCompleted: t.IsCompleted,
			})
			if err != nil {
				return err
			}
			taskIDs[t.ID] = created.ID
			res.Tasks++
		}
		if len(next) == len(remaining) {
			// Orphaned subtasks whose parent is not in the snapshot.
			break
		}
		remaining = next
	}
	return nil
}
