package notebook

import "time"

// Note is a free-form note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteInput holds the editable fields of a Note.
type NoteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// Project groups tasks and reports.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Priority ranks a project task.
type Priority string

// Task priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ProjectTask is a task inside a project. ParentID links subtasks.
type ProjectTask struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	Priority    Priority  `json:"priority"`
	Assignee    string    `json:"assignee,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskInput holds the editable fields of a ProjectTask.
type TaskInput struct {
	ProjectID   string   `json:"project_id"`
	ParentID    string   `json:"parent_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	Priority    Priority `json:"priority"`
	Assignee    string   `json:"assignee,omitempty"`
	IsCompleted bool     `json:"is_completed"`
}

// TodoList is a named checklist. Items are loaded with the list.
type TodoList struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Items     []TodoItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TodoItem is one entry of a TodoList.
type TodoItem struct {
	ID         string    `json:"id"`
	TodoListID string    `json:"todo_list_id"`
	Text       string    `json:"text"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TodoItemUpdate carries item changes. Nil fields are left untouched.
type TodoItemUpdate struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// DailyReport summarizes one day of work on a project.
type DailyReport struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Date      string    `json:"date"`
	Tasks     []string  `json:"tasks"`
	Progress  string    `json:"progress"`
	Issues    string    `json:"issues"`
	Plans     []string  `json:"plans"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyReportInput holds the fields of a DailyReport.
type DailyReportInput struct {
	ProjectID string   `json:"project_id"`
	Date      string   `json:"date"`
	Tasks     []string `json:"tasks"`
	Progress  string   `json:"progress"`
	Issues    string   `json:"issues"`
	Plans     []string `json:"plans"`
}

// WeeklyReport summarizes one week of work on a project.
type WeeklyReport struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	WeekStart     string    `json:"week_start"`
	WeekEnd       string    `json:"week_end"`
	Summary       string    `json:"summary"`
	Achievements  []string  `json:"achievements"`
	Challenges    []string  `json:"challenges"`
	NextWeekPlans []string  `json:"next_week_plans"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WeeklyReportInput holds the fields of a WeeklyReport.
type WeeklyReportInput struct {
	ProjectID     string   `json:"project_id"`
	WeekStart     string   `json:"week_start"`
	WeekEnd       string   `json:"week_end"`
	Summary       string   `json:"summary"`
	Achievements  []string `json:"achievements"`
	Challenges    []string `json:"challenges"`
	NextWeekPlans []string `json:"next_week_plans"`
}

// ReportType selects the report a template renders.
type ReportType string

// Report types.
const (
	ReportDaily  ReportType = "daily"
	ReportWeekly ReportType = "weekly"
)

// ReportTemplate is a reusable report skeleton, optionally bound to a project.
type ReportTemplate struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      ReportType `json:"type"`
	Content   string     `json:"content"`
	ProjectID string     `json:"project_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TemplateInput holds the fields of a ReportTemplate.
type TemplateInput struct {
	Name      string     `json:"name"`
	Type      ReportType `json:"type"`
	Content   string     `json:"content"`
	ProjectID string     `json:"project_id,omitempty"`
}
