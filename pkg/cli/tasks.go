package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/colors"
	"github.com/harrisonrobin/flowdesk/pkg/filter"
	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/orgmode"
	"github.com/harrisonrobin/flowdesk/pkg/progress"
)

const barWidth = 10

// taskView is a task with its derived progress, as printed by json and yaml output.
type taskView struct {
	model.Task
	Progress progress.View `json:"progress"`
}

func viewOf(task model.Task, now time.Time) taskView {
	return taskView{Task: task, Progress: progress.Derive(task, now)}
}

func newTasksCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and manage tasks",
	}
	cmd.AddCommand(newTasksListCommand(app))
	cmd.AddCommand(newTasksShowCommand(app))
	cmd.AddCommand(newTasksCreateCommand(app))
	cmd.AddCommand(newTasksUpdateCommand(app))
	cmd.AddCommand(newTasksDeleteCommand(app))
	cmd.AddCommand(newTasksAssignCommand(app))
	cmd.AddCommand(newTasksStopCommand(app))
	cmd.AddCommand(newTasksResumeCommand(app))
	cmd.AddCommand(newTasksProgressCommand(app))
	cmd.AddCommand(newTasksHelpCommand(app))
	cmd.AddCommand(newTasksImportCommand(app))
	return cmd
}

// criteriaFlags are the list filters shared by commands that show tasks.
type criteriaFlags struct {
	status, priority, search, sortBy, order, quick string
}

func (f *criteriaFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.status, "status", filter.All, "status filter (not-started|in-progress|paused|completed|all)")
	flags.StringVar(&f.priority, "priority", filter.All, "priority filter (low|medium|high|critical|all)")
	flags.StringVarP(&f.search, "search", "s", "", "match title or description")
	flags.StringVar(&f.sortBy, "sort", "", "sort key (createdAt|endDate|title|priority)")
	flags.StringVar(&f.order, "order", "", "sort order (asc|desc)")
	flags.StringVarP(&f.quick, "quick", "q", string(filter.QuickAll), "quick filter (all|today|upcoming|overdue)")
}

func (f *criteriaFlags) criteria(app *App) (filter.Criteria, error) {
	c := filter.DefaultCriteria()
	c.Locale = app.cfg.Locale
	if app.cfg.DefaultSort != "" {
		c.SortBy = filter.SortKey(app.cfg.DefaultSort)
	}
	if app.cfg.DefaultOrder != "" {
		c.Order = filter.Order(app.cfg.DefaultOrder)
	}
	if f.sortBy != "" {
		c.SortBy = filter.SortKey(f.sortBy)
	}
	if f.order != "" {
		c.Order = filter.Order(f.order)
	}
	c.Status, c.Priority, c.Search = f.status, f.priority, strings.TrimSpace(f.search)
	c.Quick = filter.Quick(f.quick)

	if c.Status != filter.All && !model.Status(c.Status).IsValid() {
		return c, api.Invalid("status", "is not a known status")
	}
	if c.Priority != filter.All && c.Priority != "" && !model.Priority(c.Priority).IsValid() {
		return c, api.Invalid("priority", "is not a known priority")
	}
	if !validSortKey(c.SortBy) {
		return c, api.Invalid("sort", "must be one of createdAt, endDate, title, priority")
	}
	if c.Order != filter.Asc && c.Order != filter.Desc {
		return c, api.Invalid("order", "must be asc or desc")
	}
	if !validQuick(c.Quick) {
		return c, api.Invalid("quick", "must be one of all, today, upcoming, overdue")
	}
	return c, nil
}

func validSortKey(k filter.SortKey) bool {
	for _, v := range filter.ValidSortKeys() {
		if v == k {
			return true
		}
	}
	return false
}

func validQuick(q filter.Quick) bool {
	for _, v := range filter.ValidQuick() {
		if v == q {
			return true
		}
	}
	return false
}

// loadTasks fetches the list for c. When the backend cannot be reached the
// last cached list is used and a warning printed. With --offline only the
// cache is read.
func (a *App) loadTasks(cmd *cobra.Command, c filter.Criteria) (all, visible []model.Task, err error) {
	now := a.now()
	if a.Opts.Offline {
		db := a.openCache()
		if db == nil {
			return nil, nil, fmt.Errorf("offline cache unavailable")
		}
		cached := db.For(a.session.User().ID)
		all, err = cached.LoadTasks()
		if err != nil {
			return nil, nil, err
		}
		if at, err := cached.FetchedAt(); err == nil && !at.IsZero() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Showing tasks cached at %s\n", at.Local().Format("2006-01-02 15:04"))
		}
		return all, filter.Apply(all, c, now), nil
	}

	s, err := a.taskStore()
	if err != nil {
		return nil, nil, err
	}
	s.Restore(c)
	if err := s.Fetch(contextFor(cmd)); err != nil {
		state := s.Snapshot()
		if !state.Stale || api.IsUnauthorized(err) {
			return nil, nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s, showing cached tasks\n", state.Error)
	}
	return s.Snapshot().Tasks, s.Visible(now), nil
}

func newTasksListCommand(app *App) *cobra.Command {
	var flags criteriaFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.criteria(app)
			if err != nil {
				return err
			}
			all, visible, err := app.loadTasks(cmd, c)
			if err != nil {
				return err
			}
			now := app.now()

			views := make([]taskView, 0, len(visible))
			for _, t := range visible {
				views = append(views, viewOf(t, now))
			}
			return app.emit(cmd, views, func(w io.Writer) error {
				stats := filter.Count(all, now)
				fmt.Fprintf(w, "Total %d  Today %d  Upcoming %d  Overdue %d\n",
					stats.Total, stats.Today, stats.Upcoming, stats.Overdue)
				if len(views) == 0 {
					_, err := fmt.Fprintln(w, "No tasks found.")
					return err
				}
				return renderTable(w, []string{"ID", "TITLE", "STATUS", "PRIORITY", "DUE", "PROGRESS", "SCHEDULE"}, taskRows(views))
			})
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func taskRows(views []taskView) [][]string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID,
			v.Title,
			string(v.Status),
			orDash(string(v.Priority)),
			formatDate(v.EndDate),
			progressCell(v.Progress),
			colors.Style(v.Progress.Color).Render(v.Progress.StatusText),
		})
	}
	return rows
}

func progressCell(v progress.View) string {
	return fmt.Sprintf("%s %3.0f%%", colors.Bar(v.DisplayProgress, barWidth, v.Color), v.DisplayProgress)
}

func newTasksShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.FetchOne(contextFor(cmd), args[0])
			if err != nil {
				return notFound("task", err)
			}
			view := viewOf(task, app.now())
			return app.emit(cmd, view, func(w io.Writer) error {
				return app.printTask(w, view)
			})
		},
	}
}

func (a *App) printTask(w io.Writer, v taskView) error {
	perms := model.PermissionsFor(a.session.User(), v.Task)
	var actions []string
	if perms.CanEdit {
		actions = append(actions, "edit")
	}
	if perms.CanDelete {
		actions = append(actions, "delete")
	}
	if perms.CanWork {
		actions = append(actions, "stop", "resume", "help")
	}

	fmt.Fprintln(w, headerStyle.UnsetPadding().Render(v.Title))
	fmt.Fprintf(w, "id:        %s\n", v.ID)
	fmt.Fprintf(w, "status:    %s\n", v.Status)
	fmt.Fprintf(w, "priority:  %s\n", orDash(string(v.Priority)))
	fmt.Fprintf(w, "start:     %s\n", formatDate(v.StartDate))
	fmt.Fprintf(w, "due:       %s\n", formatDate(v.EndDate))
	fmt.Fprintf(w, "progress:  %s  %s\n", progressCell(v.Progress), colors.Style(v.Progress.Color).Render(v.Progress.StatusText))
	fmt.Fprintf(w, "creator:   %s\n", orDash(v.CreatedBy.Label()))
	fmt.Fprintf(w, "assigned:  %s\n", names(v.AssignedUsers))
	if v.IsStopped() && len(v.StopLogs) > 0 {
		fmt.Fprintf(w, "stopped:   %s\n", v.StopLogs[len(v.StopLogs)-1].Reason)
	}
	if len(actions) > 0 {
		fmt.Fprintf(w, "actions:   %s\n", strings.Join(actions, ", "))
	}
	if desc := a.markdown(w, v.Description); desc != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, desc)
	}
	return nil
}

// taskFlags are the editable task fields.
type taskFlags struct {
	title, description, status, priority, start, end string
	assign                                           []string
}

func (f *taskFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.title, "title", "t", "", "task title")
	flags.StringVarP(&f.description, "description", "d", "", "task description (markdown)")
	flags.StringVar(&f.status, "status", "", "status (not-started|in-progress|paused|completed)")
	flags.StringVarP(&f.priority, "priority", "p", "", "priority (low|medium|high|critical)")
	flags.StringVar(&f.start, "start", "", "start date (YYYY-MM-DD or RFC 3339)")
	flags.StringVar(&f.end, "end", "", "end date (YYYY-MM-DD or RFC 3339)")
	flags.StringSliceVar(&f.assign, "assign", nil, "assignee user ids")
}

func (f *taskFlags) input(flags *pflag.FlagSet, loc *time.Location) (api.TaskInput, error) {
	in := api.TaskInput{
		Title:         strings.TrimSpace(f.title),
		Description:   f.description,
		Status:        model.Status(f.status),
		Priority:      model.Priority(f.priority),
		AssignedUsers: f.assign,
	}
	var err error
	if flags.Changed("start") {
		if in.StartDate, err = parseDate("start", f.start, loc); err != nil {
			return in, err
		}
	}
	if flags.Changed("end") {
		if in.EndDate, err = parseDate("end", f.end, loc); err != nil {
			return in, err
		}
	}
	return in, nil
}

// parseDate reads a calendar date in loc, or a full RFC 3339 instant.
func parseDate(field, value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return nil, api.Invalid(field, "must be a date like 2024-01-31")
}

func (a *App) printTaskLine(cmd *cobra.Command, verb string, task model.Task) error {
	return a.emit(cmd, viewOf(task, a.now()), func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s task %s: %s\n", verb, task.ID, task.Title)
		return err
	})
}

func newTasksCreateCommand(app *App) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd.Flags(), app.now().Location())
			if err != nil {
				return err
			}
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.Create(contextFor(cmd), in)
			if err != nil {
				return err
			}
			return app.printTaskLine(cmd, "Created", task)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func newTasksUpdateCommand(app *App) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a task's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd.Flags(), app.now().Location())
			if err != nil {
				return err
			}
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.Update(contextFor(cmd), args[0], in)
			if err != nil {
				return notFound("task", err)
			}
			return app.printTaskLine(cmd, "Updated", task)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func newTasksDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextFor(cmd)
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.FetchOne(ctx, args[0])
			if err != nil {
				return notFound("task", err)
			}
			if !model.PermissionsFor(app.session.User(), task).CanDelete {
				return fmt.Errorf("only the creator or an admin can delete %q", task.Title)
			}
			ok, err := app.confirm(fmt.Sprintf("Delete task %q?", task.Title))
			if err != nil {
				return err
			}
			if !ok {
				return errCancelled
			}
			if err := s.Delete(ctx, task.ID); err != nil {
				return notFound("task", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", task.ID)
			return nil
		},
	}
}

func newTasksAssignCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign ID USER_ID...",
		Short: "Replace a task's assignees",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.Assign(contextFor(cmd), args[0], args[1:])
			if err != nil {
				return notFound("task", err)
			}
			return app.printTaskLine(cmd, "Assigned", task)
		},
	}
}

func newTasksStopCommand(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop ID",
		Short: "Pause work on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(reason) == "" {
				return api.Invalid("reason", "is required")
			}
			ok, err := app.confirm(fmt.Sprintf("Stop work on task %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return errCancelled
			}
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.StopWork(contextFor(cmd), args[0], reason)
			if err != nil {
				return notFound("task", err)
			}
			return app.printTaskLine(cmd, "Stopped", task)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why work is stopping (required)")
	return cmd
}

func newTasksResumeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume work on a paused task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.ResumeWork(contextFor(cmd), args[0])
			if err != nil {
				return notFound("task", err)
			}
			return app.printTaskLine(cmd, "Resumed", task)
		},
	}
}

func newTasksProgressCommand(app *App) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "progress ID PERCENT",
		Short: "Set a task's progress by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
			if err != nil {
				return api.Invalid("progress", "must be a number")
			}
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			task, err := s.UpdateProgress(contextFor(cmd), args[0], pct, comment)
			if err != nil {
				return notFound("task", err)
			}
			view := viewOf(task, app.now())
			return app.emit(cmd, view, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s  %s\n", task.Title, progressCell(view.Progress))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "m", "", "note stored with the change")
	return cmd
}

func newTasksHelpCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "help-request ID",
		Short: "Ask the task's creator for help",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.taskStore()
			if err != nil {
				return err
			}
			if err := s.RequestHelp(contextFor(cmd), args[0]); err != nil {
				return notFound("task", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Help requested for task %s\n", args[0])
			return nil
		},
	}
}

// importResult is one line of an import report.
type importResult struct {
	Line  int    `json:"line"`
	Title string `json:"title"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

func newTasksImportCommand(app *App) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "import FILE.org",
		Short: "Create tasks from the TODO headings of an Org-mode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := orgmode.ParseFile(args[0], app.now().Location())
			if err != nil {
				return err
			}
			if tag != "" {
				entries = orgmode.FilterTasks(entries, tag)
			}
			s, err := app.taskStore()
			if err != nil {
				return err
			}

			ctx := contextFor(cmd)
			results := make([]importResult, 0, len(entries))
			failed := 0
			for _, e := range entries {
				r := importResult{Line: e.Line, Title: e.Title}
				task, err := s.Create(ctx, e.TaskInput)
				if err != nil {
					if api.IsUnauthorized(err) {
						return err
					}
					r.Error = describe(err)
					failed++
				} else {
					r.ID = task.ID
				}
				results = append(results, r)
			}

			err = app.emit(cmd, results, func(w io.Writer) error {
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(w, "line %d: %s: %s\n", r.Line, r.Title, r.Error)
					} else {
						fmt.Fprintf(w, "created %s: %s\n", r.ID, r.Title)
					}
				}
				_, err := fmt.Fprintf(w, "Imported %d of %d tasks\n", len(results)-failed, len(results))
				return err
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d tasks failed to import", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only import headings carrying this tag")
	return cmd
}
