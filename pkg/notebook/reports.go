package notebook

import (
	"context"
	"fmt"
	"time"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/table"
)

// ListDailyReports returns daily reports, latest date first. A non-empty
// projectID limits the result to that project.
func (s *Service) ListDailyReports(ctx context.Context, projectID string) ([]DailyReport, error) {
	recs, err := s.list(ctx, table.DailyReports, "project_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing daily reports: %w", err)
	}
	reports, err := decodeAll[DailyReport](recs)
	if err != nil {
		return nil, err
	}
	descendingBy(reports, func(r DailyReport) string { return r.Date })
	return reports, nil
}

// SaveDailyReport stores the report for (project, date), replacing an
// existing report for the same day.
func (s *Service) SaveDailyReport(ctx context.Context, in DailyReportInput) (*DailyReport, error) {
	const op = "save_daily_report"
	if err := required(op, "project_id", in.ProjectID); err != nil {
		return nil, err
	}
	if err := validDate(op, "date", in.Date); err != nil {
		return nil, err
	}

	rec, err := s.upsert(ctx, table.DailyReports, in.ProjectID, "date", in.Date, in)
	if err != nil {
		return nil, fmt.Errorf("saving daily report: %w", err)
	}
	r, err := decode[DailyReport](rec)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListWeeklyReports returns weekly reports, latest week first.
func (s *Service) ListWeeklyReports(ctx context.Context, projectID string) ([]WeeklyReport, error) {
	recs, err := s.list(ctx, table.WeeklyReports, "project_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing weekly reports: %w", err)
	}
	reports, err := decodeAll[WeeklyReport](recs)
	if err != nil {
		return nil, err
	}
	descendingBy(reports, func(r WeeklyReport) string { return r.WeekStart })
	return reports, nil
}

// SaveWeeklyReport stores the report for (project, week_start), replacing
// an existing report for the same week.
func (s *Service) SaveWeeklyReport(ctx context.Context, in WeeklyReportInput) (*WeeklyReport, error) {
	const op = "save_weekly_report"
	if err := required(op, "project_id", in.ProjectID); err != nil {
		return nil, err
	}
	if err := validDate(op, "week_start", in.WeekStart); err != nil {
		return nil, err
	}
	if err := validDate(op, "week_end", in.WeekEnd); err != nil {
		return nil, err
	}
	if in.WeekEnd < in.WeekStart {
		return nil, failure.New(failure.InvalidInput, op, "week_end is before week_start")
	}

	rec, err := s.upsert(ctx, table.WeeklyReports, in.ProjectID, "week_start", in.WeekStart, in)
	if err != nil {
		return nil, fmt.Errorf("saving weekly report: %w", err)
	}
	r, err := decode[WeeklyReport](rec)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReportTemplates returns templates, newest first.
func (s *Service) ListReportTemplates(ctx context.Context, projectID string) ([]ReportTemplate, error) {
	recs, err := s.list(ctx, table.ReportTemplates, "project_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing report templates: %w", err)
	}
	templates, err := decodeAll[ReportTemplate](recs)
	if err != nil {
		return nil, err
	}
	newestFirst(templates, func(t ReportTemplate) time.Time { return t.CreatedAt })
	return templates, nil
}

// SaveReportTemplate stores a new template.
func (s *Service) SaveReportTemplate(ctx context.Context, in TemplateInput) (*ReportTemplate, error) {
	const op = "save_report_template"
	if err := required(op, "name", in.Name); err != nil {
		return nil, err
	}
	if in.Type != ReportDaily && in.Type != ReportWeekly {
		return nil, failure.New(failure.InvalidInput, op, fmt.Sprintf("unknown report type %q", in.Type))
	}

	rec, err := s.insert(ctx, table.ReportTemplates, in)
	if err != nil {
		return nil, fmt.Errorf("saving report template: %w", err)
	}
	t, err := decode[ReportTemplate](rec)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteReportTemplate removes template id.
func (s *Service) DeleteReportTemplate(ctx context.Context, id string) error {
	if err := s.store.DeleteWhere(ctx, table.ReportTemplates, table.FieldID, id); err != nil {
		return fmt.Errorf("deleting report template: %w", err)
	}
	return nil
}

// upsert updates the project's record whose key field equals key, or
// inserts input when there is none.
func (s *Service) upsert(ctx context.Context, tbl, projectID, keyField, key string, input any) (table.Record, error) {
	recs, err := s.store.SelectWhere(ctx, tbl, "project_id", projectID)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.String(keyField) == key {
			return s.update(ctx, tbl, rec.ID(), input)
		}
	}
	return s.insert(ctx, tbl, input)
}

func validDate(op, field, value string) error {
	if _, err := time.Parse(time.DateOnly, value); err != nil {
		return failure.New(failure.InvalidInput, op, field+" must be a YYYY-MM-DD date")
	}
	return nil
}
