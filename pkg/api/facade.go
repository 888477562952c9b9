package api

import (
	"net/http"

	"github.com/txn2/ai-notebook/pkg/notebook"
)

// registerFacadeRoutes adds the view-model routes under /notebook/v1.
// They apply the cascades and upserts that raw /rest/v1 calls do not.
func (h *Handler) registerFacadeRoutes() {
	authed := func(fn http.HandlerFunc) http.Handler { return h.requireSession(fn) }

	h.mux.Handle("GET /notebook/v1/notes", authed(h.listNotes))
	h.mux.Handle("POST /notebook/v1/notes", authed(h.createNote))
	h.mux.Handle("PUT /notebook/v1/notes/{id}", authed(h.updateNote))
	h.mux.Handle("DELETE /notebook/v1/notes/{id}", authed(h.deleteNote))

	h.mux.Handle("GET /notebook/v1/projects", authed(h.listProjects))
	h.mux.Handle("POST /notebook/v1/projects", authed(h.createProject))
	h.mux.Handle("PATCH /notebook/v1/projects/{id}", authed(h.renameProject))
	h.mux.Handle("DELETE /notebook/v1/projects/{id}", authed(h.deleteProject))

	h.mux.Handle("GET /notebook/v1/tasks", authed(h.listTasks))
	h.mux.Handle("POST /notebook/v1/tasks", authed(h.createTask))
	h.mux.Handle("PUT /notebook/v1/tasks/{id}", authed(h.updateTask))
	h.mux.Handle("DELETE /notebook/v1/tasks/{id}", authed(h.deleteTask))

	h.mux.Handle("GET /notebook/v1/todo-lists", authed(h.listTodoLists))
	h.mux.Handle("POST /notebook/v1/todo-lists", authed(h.createTodoList))
	h.mux.Handle("DELETE /notebook/v1/todo-lists/{id}", authed(h.deleteTodoList))
	h.mux.Handle("POST /notebook/v1/todo-lists/{id}/items", authed(h.addTodoItem))
	h.mux.Handle("PATCH /notebook/v1/todo-items/{id}", authed(h.updateTodoItem))
	h.mux.Handle("DELETE /notebook/v1/todo-items/{id}", authed(h.deleteTodoItem))

	h.mux.Handle("GET /notebook/v1/reports/daily", authed(h.listDailyReports))
	h.mux.Handle("PUT /notebook/v1/reports/daily", authed(h.saveDailyReport))
	h.mux.Handle("GET /notebook/v1/reports/weekly", authed(h.listWeeklyReports))
	h.mux.Handle("PUT /notebook/v1/reports/weekly", authed(h.saveWeeklyReport))

	h.mux.Handle("GET /notebook/v1/templates", authed(h.listTemplates))
	h.mux.Handle("POST /notebook/v1/templates", authed(h.saveTemplate))
	h.mux.Handle("DELETE /notebook/v1/templates/{id}", authed(h.deleteTemplate))
}

// nameBody is the body of project create and rename.
type nameBody struct {
	Name string `json:"name"`
}

// titleBody is the body of todo list creation.
type titleBody struct {
	Title string `json:"title"`
}

// textBody is the body of todo item creation.
type textBody struct {
	Text string `json:"text"`
}

// reply writes v with status, or the failure in err.
func reply[T any](h *Handler, w http.ResponseWriter, r *http.Request, status int, v T, err error) {
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// replyNoContent writes 204, or the failure in err.
func (h *Handler) replyNoContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeInto decodes the body into a T. On failure the response is
// already written and ok is false.
func decodeInto[T any](h *Handler, w http.ResponseWriter, r *http.Request, op string) (v T, ok bool) {
	if err := decodeBody(r, op, &v); err != nil {
		h.writeFailure(w, r, err)
		return v, false
	}
	return v, true
}

// listNotes handles GET /notebook/v1/notes.
//
// @Summary      List notes
// @Description  Returns the caller's notes, most recently updated first.
// @Tags         Notebook
// @Produce      json
// @Success      200  {array}   notebook.Note
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/notes [get]
func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.deps.Notebook.ListNotes(r.Context())
	reply(h, w, r, http.StatusOK, notes, err)
}

// @Summary      Create a note
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        body  body      notebook.NoteInput  true  "Note"
// @Success      201   {object}  notebook.Note
// @Security     BearerAuth
// @Router       /notebook/v1/notes [post]
func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.NoteInput](h, w, r, "create_note")
	if !ok {
		return
	}
	note, err := h.deps.Notebook.CreateNote(r.Context(), in)
	reply(h, w, r, http.StatusCreated, note, err)
}

// @Summary      Update a note
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Note id"
// @Param        body  body      notebook.NoteInput  true  "Note"
// @Success      200   {object}  notebook.Note
// @Failure      404   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/notes/{id} [put]
func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.NoteInput](h, w, r, "update_note")
	if !ok {
		return
	}
	note, err := h.deps.Notebook.UpdateNote(r.Context(), r.PathValue("id"), in)
	reply(h, w, r, http.StatusOK, note, err)
}

// @Summary      Delete a note
// @Tags         Notebook
// @Param        id  path  string  true  "Note id"
// @Success      204
// @Security     BearerAuth
// @Router       /notebook/v1/notes/{id} [delete]
func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	h.replyNoContent(w, r, h.deps.Notebook.DeleteNote(r.Context(), r.PathValue("id")))
}

// @Summary      List projects
// @Tags         Notebook
// @Produce      json
// @Success      200  {array}  notebook.Project
// @Security     BearerAuth
// @Router       /notebook/v1/projects [get]
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.Notebook.ListProjects(r.Context())
	reply(h, w, r, http.StatusOK, projects, err)
}

// @Summary      Create a project
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        body  body      nameBody  true  "Project name"
// @Success      201   {object}  notebook.Project
// @Security     BearerAuth
// @Router       /notebook/v1/projects [post]
func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[nameBody](h, w, r, "create_project")
	if !ok {
		return
	}
	project, err := h.deps.Notebook.CreateProject(r.Context(), in.Name)
	reply(h, w, r, http.StatusCreated, project, err)
}

// @Summary      Rename a project
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        id    path      string    true  "Project id"
// @Param        body  body      nameBody  true  "New name"
// @Success      200   {object}  notebook.Project
// @Failure      404   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/projects/{id} [patch]
func (h *Handler) renameProject(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[nameBody](h, w, r, "rename_project")
	if !ok {
		return
	}
	project, err := h.deps.Notebook.RenameProject(r.Context(), r.PathValue("id"), in.Name)
	reply(h, w, r, http.StatusOK, project, err)
}

// deleteProject handles DELETE /notebook/v1/projects/{id}. Tasks, reports
// and templates of the project go with it.
//
// @Summary      Delete a project
// @Tags         Notebook
// @Param        id  path  string  true  "Project id"
// @Success      204
// @Security     BearerAuth
// @Router       /notebook/v1/projects/{id} [delete]
func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	h.replyNoContent(w, r, h.deps.Notebook.DeleteProject(r.Context(), r.PathValue("id")))
}

// @Summary      List tasks
// @Tags         Notebook
// @Produce      json
// @Param        project_id  query     string  false  "Limit to one project"
// @Success      200         {array}   notebook.ProjectTask
// @Security     BearerAuth
// @Router       /notebook/v1/tasks [get]
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.deps.Notebook.ListTasks(r.Context(), r.URL.Query().Get("project_id"))
	reply(h, w, r, http.StatusOK, tasks, err)
}

// @Summary      Create a task
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        body  body      notebook.TaskInput  true  "Task"
// @Success      201   {object}  notebook.ProjectTask
// @Failure      404   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/tasks [post]
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.TaskInput](h, w, r, "create_task")
	if !ok {
		return
	}
	task, err := h.deps.Notebook.CreateTask(r.Context(), in)
	reply(h, w, r, http.StatusCreated, task, err)
}

// @Summary      Update a task
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Task id"
// @Param        body  body      notebook.TaskInput  true  "Task"
// @Success      200   {object}  notebook.ProjectTask
// @Failure      404   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/tasks/{id} [put]
func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.TaskInput](h, w, r, "update_task")
	if !ok {
		return
	}
	task, err := h.deps.Notebook.UpdateTask(r.Context(), r.PathValue("id"), in)
	reply(h, w, r, http.StatusOK, task, err)
}

// deleteTask handles DELETE /notebook/v1/tasks/{id}, subtasks included.
//
// @Summary      Delete a task
// @Tags         Notebook
// @Param        id  path  string  true  "Task id"
// @Success      204
// @Security     BearerAuth
// @Router       /notebook/v1/tasks/{id} [delete]
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	h.replyNoContent(w, r, h.deps.Notebook.DeleteTask(r.Context(), r.PathValue("id")))
}

// @Summary      List todo lists
// @Description  Lists with their items, most recently updated first.
// @Tags         Notebook
// @Produce      json
// @Success      200  {array}  notebook.TodoList
// @Security     BearerAuth
// @Router       /notebook/v1/todo-lists [get]
func (h *Handler) listTodoLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.deps.Notebook.ListTodoLists(r.Context())
	reply(h, w, r, http.StatusOK, lists, err)
}

// @Summary      Create a todo list
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        body  body      titleBody  true  "List title"
// @Success      201   {object}  notebook.TodoList
// @Security     BearerAuth
// @Router       /notebook/v1/todo-lists [post]
func (h *Handler) createTodoList(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[titleBody](h, w, r, "create_todo_list")
	if !ok {
		return
	}
	list, err := h.deps.Notebook.CreateTodoList(r.Context(), in.Title)
	reply(h, w, r, http.StatusCreated, list, err)
}

// @Summary      Delete a todo list
// @Tags         Notebook
// @Param        id  path  string  true  "List id"
// @Success      204
// @Security     BearerAuth
// @Router       /notebook/v1/todo-lists/{id} [delete]
func (h *Handler) deleteTodoList(w http.ResponseWriter, r *http.Request) {
	h.replyNoContent(w, r, h.deps.Notebook.DeleteTodoList(r.Context(), r.PathValue("id")))
}

// @Summary      Add a todo item
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        id    path      string    true  "List id"
// @Param        body  body      textBody  true  "Item text"
// @Success      201   {object}  notebook.TodoItem
// @Failure      404   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/todo-lists/{id}/items [post]
func (h *Handler) addTodoItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[textBody](h, w, r, "add_todo_item")
	if !ok {
		return
	}
	item, err := h.deps.Notebook.AddTodoItem(r.Context(), r.PathValue("id"), in.Text)
	reply(h, w, r, http.StatusCreated, item, err)
}

// @Summary      Update a todo item
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        id    path      string                   true  "Item id"
// @Param        body  body      notebook.TodoItemUpdate  true  "Changes"
// @Success      200   {object}  notebook.TodoItem
// @Failure      404   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/todo-items/{id} [patch]
func (h *Handler) updateTodoItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.TodoItemUpdate](h, w, r, "update_todo_item")
	if !ok {
		return
	}
	item, err := h.deps.Notebook.UpdateTodoItem(r.Context(), r.PathValue("id"), in)
	reply(h, w, r, http.StatusOK, item, err)
}

// @Summary      Delete a todo item
// @Tags         Notebook
// @Param        id  path  string  true  "Item id"
// @Success      204
// @Security     BearerAuth
// @Router       /notebook/v1/todo-items/{id} [delete]
func (h *Handler) deleteTodoItem(w http.ResponseWriter, r *http.Request) {
	h.replyNoContent(w, r, h.deps.Notebook.DeleteTodoItem(r.Context(), r.PathValue("id")))
}

// @Summary      List daily reports
// @Tags         Reports
// @Produce      json
// @Param        project_id  query    string  false  "Limit to one project"
// @Success      200         {array}  notebook.DailyReport
// @Security     BearerAuth
// @Router       /notebook/v1/reports/daily [get]
func (h *Handler) listDailyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.deps.Notebook.ListDailyReports(r.Context(), r.URL.Query().Get("project_id"))
	reply(h, w, r, http.StatusOK, reports, err)
}

// saveDailyReport handles PUT /notebook/v1/reports/daily. A report for an
// existing project and date is updated in place.
//
// @Summary      Save a daily report
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        body  body      notebook.DailyReportInput  true  "Report"
// @Success      200   {object}  notebook.DailyReport
// @Security     BearerAuth
// @Router       /notebook/v1/reports/daily [put]
func (h *Handler) saveDailyReport(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.DailyReportInput](h, w, r, "save_daily_report")
	if !ok {
		return
	}
	report, err := h.deps.Notebook.SaveDailyReport(r.Context(), in)
	reply(h, w, r, http.StatusOK, report, err)
}

// @Summary      List weekly reports
// @Tags         Reports
// @Produce      json
// @Param        project_id  query    string  false  "Limit to one project"
// @Success      200         {array}  notebook.WeeklyReport
// @Security     BearerAuth
// @Router       /notebook/v1/reports/weekly [get]
func (h *Handler) listWeeklyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.deps.Notebook.ListWeeklyReports(r.Context(), r.URL.Query().Get("project_id"))
	reply(h, w, r, http.StatusOK, reports, err)
}

// @Summary      Save a weekly report
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        body  body      notebook.WeeklyReportInput  true  "Report"
// @Success      200   {object}  notebook.WeeklyReport
// @Security     BearerAuth
// @Router       /notebook/v1/reports/weekly [put]
func (h *Handler) saveWeeklyReport(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.WeeklyReportInput](h, w, r, "save_weekly_report")
	if !ok {
		return
	}
	report, err := h.deps.Notebook.SaveWeeklyReport(r.Context(), in)
	reply(h, w, r, http.StatusOK, report, err)
}

// @Summary      List report templates
// @Tags         Reports
// @Produce      json
// @Param        project_id  query    string  false  "Limit to one project"
// @Success      200         {array}  notebook.ReportTemplate
// @Security     BearerAuth
// @Router       /notebook/v1/templates [get]
func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.deps.Notebook.ListReportTemplates(r.Context(), r.URL.Query().Get("project_id"))
	reply(h, w, r, http.StatusOK, templates, err)
}

// @Summary      Save a report template
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        body  body      notebook.TemplateInput  true  "Template"
// @Success      201   {object}  notebook.ReportTemplate
// @Security     BearerAuth
// @Router       /notebook/v1/templates [post]
func (h *Handler) saveTemplate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInto[notebook.TemplateInput](h, w, r, "save_template")
	if !ok {
		return
	}
	template, err := h.deps.Notebook.SaveReportTemplate(r.Context(), in)
	reply(h, w, r, http.StatusCreated, template, err)
}

// @Summary      Delete a report template
// @Tags         Reports
// @Param        id  path  string  true  "Template id"
// @Success      204
// @Security     BearerAuth
// @Router       /notebook/v1/templates/{id} [delete]
func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	h.replyNoContent(w, r, h.deps.Notebook.DeleteReportTemplate(r.Context(), r.PathValue("id")))
}
