package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/poller"
	"github.com/harrisonrobin/flowdesk/pkg/store"
)

var unreadStyle = lipgloss.NewStyle().Bold(true)

func (a *App) notificationStore() (*store.NotificationStore, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return store.NewNotificationStore(client, a.Logger), nil
}

func notificationRows(items []model.Notification) [][]string {
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		mark, title := "", n.Title
		if !n.IsRead {
			mark, title = "●", unreadStyle.Render(n.Title)
		}
		rows = append(rows, []string{mark, formatTime(n.CreatedAt), title, n.Message, n.ID})
	}
	return rows
}

func newNotificationsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "inbox"},
		Short:   "Read and manage notifications",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.notificationStore()
			if err != nil {
				return err
			}
			s.Limit = limit
			if err := s.Fetch(contextFor(cmd)); err != nil {
				return err
			}
			state := s.Snapshot()
			return app.emit(cmd, state.Notifications, func(w io.Writer) error {
				fmt.Fprintf(w, "%d unread\n", state.UnreadCount)
				if len(state.Notifications) == 0 {
					_, err := fmt.Fprintln(w, "No notifications.")
					return err
				}
				return renderTable(w, []string{"", "WHEN", "TITLE", "MESSAGE", "ID"}, notificationRows(state.Notifications))
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "how many notifications to fetch")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "read ID...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.notificationStore()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := s.MarkAsRead(contextFor(cmd), id); err != nil {
					return notFound("notification", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d as read\n", len(args))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.notificationStore()
			if err != nil {
				return err
			}
			if err := s.MarkAllAsRead(contextFor(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.confirmed("Delete notification " + args[0] + "?"); err != nil {
				return err
			}
			s, err := app.notificationStore()
			if err != nil {
				return err
			}
			if err := s.Delete(contextFor(cmd), args[0]); err != nil {
				return notFound("notification", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted notification %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(newWatchCommand(app))
	return cmd
}

func newWatchCommand(app *App) *cobra.Command {
	var interval time.Duration
	var polls int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the unread count until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.notificationStore()
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = app.cfg.PollInterval.Duration
			}

			ctx, stop := signal.NotifyContext(contextFor(cmd), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			out := cmd.OutOrStdout()
			last, done := -1, 0
			var fatal error
			p := poller.New(interval, func(ctx context.Context) error {
				done++
				if polls > 0 && done >= polls {
					defer cancel()
				}
				n, err := s.FetchUnreadCount(ctx)
				if err != nil {
					if errors.Is(err, api.ErrNoSession) || api.IsUnauthorized(err) {
						fatal = err
						cancel()
					}
					return err
				}
				if n != last {
					last = n
					fmt.Fprintf(out, "%s  %s\n", app.now().Format("15:04:05"), unreadLine(n))
				}
				return nil
			}, app.Logger)

			err = p.Run(ctx)
			if fatal != nil {
				return fatal
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between polls (default from config)")
	cmd.Flags().IntVar(&polls, "count", 0, "stop after this many polls (0 runs until interrupted)")
	return cmd
}

func unreadLine(n int) string {
	switch n {
	case 0:
		return "no unread notifications"
	case 1:
		return "1 unread notification"
	}
	return fmt.Sprintf("%d unread notifications", n)
}

func newUsersCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List people tasks can be assigned to",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}
			users, err := client.ListUsers(contextFor(cmd))
			if err != nil {
				return err
			}
			return app.emit(cmd, users, func(w io.Writer) error {
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{u.ID, u.Name, u.Email, orDash(u.Role)})
				}
				return renderTable(w, []string{"ID", "NAME", "EMAIL", "ROLE"}, rows)
			})
		},
	})

	var name, avatar string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change your name or avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}
			in := api.UserInput{Name: strings.TrimSpace(name), Avatar: strings.TrimSpace(avatar)}
			if in.Name == "" && in.Avatar == "" {
				return api.Invalid("name", "or avatar is required")
			}
			user, err := client.UpdateUser(contextFor(cmd), app.session.User().ID, in)
			if err != nil {
				return err
			}
			if _, err := app.session.Refresh(contextFor(cmd)); err != nil {
				app.Logger.Printf("Warning: could not refresh profile: %v", err)
			}
			return app.emit(cmd, user, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated %s <%s>\n", user.Name, user.Email)
				return err
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "display name")
	update.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	cmd.AddCommand(update)

	return cmd
}
