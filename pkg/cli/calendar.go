package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/flowdesk/pkg/auth"
	"github.com/harrisonrobin/flowdesk/pkg/calendar"
	"github.com/harrisonrobin/flowdesk/pkg/filter"
	"github.com/harrisonrobin/flowdesk/pkg/google"
	"github.com/harrisonrobin/flowdesk/pkg/index"
	"github.com/harrisonrobin/flowdesk/pkg/overdue"
)

func newCalendarCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show due dates by month or push them to Google Calendar",
	}
	cmd.AddCommand(newCalendarShowCommand(app))
	cmd.AddCommand(newCalendarSyncCommand(app))
	cmd.AddCommand(newCalendarAuthCommand(app))
	return cmd
}

func newCalendarShowCommand(app *App) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a month of due dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := app.now()
			year, mon := now.Year(), now.Month()
			if month != "" {
				t, err := time.ParseInLocation("2006-01", month, now.Location())
				if err != nil {
					return fmt.Errorf("invalid month %q: use YYYY-MM", month)
				}
				year, mon = t.Year(), t.Month()
			}

			all, _, err := app.loadTasks(cmd, filter.DefaultCriteria())
			if err != nil {
				return err
			}
			m := calendar.Build(year, mon, all, now)
			return app.emit(cmd, m, func(w io.Writer) error {
				_, err := io.WriteString(w, calendar.Render(m))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "month to show as YYYY-MM (default current)")
	return cmd
}

func (a *App) googleAuth(cmd *cobra.Command) *auth.GoogleAuth {
	return &auth.GoogleAuth{Dir: a.dir, Out: cmd.ErrOrStderr(), Logger: a.Logger}
}

func newCalendarSyncCommand(app *App) *cobra.Command {
	var calendarName string
	var prune bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or update one Google Calendar event per due date",
		Long: "Create or update one all-day Google Calendar event per task end date.\n\n" +
			"Events are colored by progress. Tasks that went overdue since the last\n" +
			"sync get a \"!\" prefix. With --prune, events of deleted tasks are removed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextFor(cmd)
			if calendarName == "" {
				calendarName = app.cfg.Calendar
			}

			all, _, err := app.loadTasks(cmd, filter.DefaultCriteria())
			if err != nil {
				return err
			}

			srv, err := app.googleAuth(cmd).CalendarService(ctx)
			if err != nil {
				return err
			}
			calendarID, err := google.FindCalendar(ctx, srv, calendarName)
			if err != nil {
				return err
			}
			idx, err := index.NewEventIndex(app.dir, calendarID)
			if err != nil {
				return fmt.Errorf("failed to load event index: %w", err)
			}
			table, err := overdue.NewTable(app.dir, calendarID)
			if err != nil {
				app.Logger.Printf("Warning: failed to initialize overdue sweep table: %v", err)
				table = nil
			}

			syncer := &google.Syncer{
				Client: google.NewCalendarClient(srv, calendarID, idx),
				Index:  idx,
				Table:  table,
				Logger: app.Logger,
				Now:    app.now,
				Prune:  prune && !app.Opts.Offline,
			}
			report, err := syncer.Sync(ctx, all)
			if err != nil {
				return err
			}
			return app.emit(cmd, report, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: %d created, %d updated, %d unchanged, %d removed, %d flagged overdue, %d without due date, %d failed\n",
					calendarName, report.Created, report.Updated, report.Unchanged, report.Removed, report.Flagged, report.Skipped, report.Failed)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&calendarName, "calendar", "c", "", "Google Calendar name (overrides config)")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete events of tasks no longer in the list")
	return cmd
}

func newCalendarAuthCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := app.googleAuth(cmd)
			if err := g.Reset(); err != nil {
				return err
			}
			if _, err := g.CalendarService(contextFor(cmd)); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			path, _ := g.TokenPath()
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", path)
			return nil
		},
	}
}
