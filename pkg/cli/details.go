package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/store"
)

const noteIndent = "    "

func (a *App) detailStore(taskID string) (*store.DetailStore, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return store.NewDetailStore(client, taskID, a.Logger), nil
}

func (a *App) confirmed(message string) error {
	ok, err := a.confirm(message)
	if err != nil {
		return err
	}
	if !ok {
		return errCancelled
	}
	return nil
}

// note prints a header line followed by body wrapped and indented.
func note(w io.Writer, header, body string) {
	fmt.Fprintln(w, header)
	if body = strings.TrimSpace(body); body != "" {
		fmt.Fprintln(w, indent(wrap(body, terminalWidth(w)-len(noteIndent)), noteIndent))
	}
}

func newCommentsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"comment"},
		Short:   "Read and write task comments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list TASK",
		Short: "List a task's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.FetchComments(contextFor(cmd)); err != nil {
				return notFound("task", err)
			}
			comments := s.Snapshot().Comments
			return app.emit(cmd, comments, func(w io.Writer) error {
				if len(comments) == 0 {
					_, err := fmt.Fprintln(w, "No comments.")
					return err
				}
				for _, c := range comments {
					note(w, fmt.Sprintf("%s  %s  (%s)", formatTime(c.CreatedAt), c.User.Label(), c.ID), c.Text)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add TASK TEXT...",
		Short: "Comment on a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			c, err := s.AddComment(contextFor(cmd), strings.Join(args[1:], " "))
			if err != nil {
				return notFound("task", err)
			}
			return app.emit(cmd, c, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Added comment %s\n", c.ID)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit TASK COMMENT TEXT...",
		Short: "Change a comment",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			c, err := s.EditComment(contextFor(cmd), args[1], strings.Join(args[2:], " "))
			if err != nil {
				return notFound("comment", err)
			}
			return app.emit(cmd, c, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated comment %s\n", c.ID)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete TASK COMMENT",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.confirmed("Delete comment " + args[1] + "?"); err != nil {
				return err
			}
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteComment(contextFor(cmd), args[1]); err != nil {
				return notFound("comment", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %s\n", args[1])
			return nil
		},
	})

	return cmd
}

// stepFlags are the editable step fields.
type stepFlags struct {
	title, description, start, end string
	assign                         []string
}

func (f *stepFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.title, "title", "t", "", "step title")
	flags.StringVarP(&f.description, "description", "d", "", "step description")
	flags.StringVar(&f.start, "start", "", "start date (YYYY-MM-DD)")
	flags.StringVar(&f.end, "end", "", "end date (YYYY-MM-DD)")
	flags.StringSliceVar(&f.assign, "assign", nil, "assignee user ids")
}

func (f *stepFlags) input(flags *pflag.FlagSet, loc *time.Location) (api.StepInput, error) {
	in := api.StepInput{
		Title:         strings.TrimSpace(f.title),
		Description:   f.description,
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

func stepRows(steps []model.Step) [][]string {
	rows := make([][]string, 0, len(steps))
	for _, st := range steps {
		active := ""
		if st.IsActive {
			active = "▶"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", st.StepNumber),
			active,
			st.Title,
			st.Status,
			formatDate(st.EndDate),
			names(st.AssignedUsers),
			st.ID,
		})
	}
	return rows
}

func (a *App) printSteps(cmd *cobra.Command, s *store.DetailStore) error {
	steps := s.Snapshot().Steps
	return a.emit(cmd, steps, func(w io.Writer) error {
		if len(steps) == 0 {
			_, err := fmt.Fprintln(w, "No steps.")
			return err
		}
		return renderTable(w, []string{"#", "", "TITLE", "STATUS", "DUE", "ASSIGNED", "ID"}, stepRows(steps))
	})
}

func newStepsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "steps",
		Aliases: []string{"step"},
		Short:   "Manage the ordered steps of a task",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list TASK",
		Short: "List a task's steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.FetchSteps(contextFor(cmd)); err != nil {
				return notFound("task", err)
			}
			return app.printSteps(cmd, s)
		},
	})

	var addFlags stepFlags
	add := &cobra.Command{
		Use:   "add TASK",
		Short: "Add a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := addFlags.input(cmd.Flags(), app.now().Location())
			if err != nil {
				return err
			}
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if _, err := s.CreateStep(contextFor(cmd), in); err != nil {
				return notFound("task", err)
			}
			return app.printSteps(cmd, s)
		},
	}
	addFlags.register(add.Flags())
	cmd.AddCommand(add)

	var updateFlags stepFlags
	update := &cobra.Command{
		Use:   "update TASK STEP",
		Short: "Change a step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := updateFlags.input(cmd.Flags(), app.now().Location())
			if err != nil {
				return err
			}
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if _, err := s.UpdateStep(contextFor(cmd), args[1], in); err != nil {
				return notFound("step", err)
			}
			return app.printSteps(cmd, s)
		},
	}
	updateFlags.register(update.Flags())
	cmd.AddCommand(update)

	transitions := []struct {
		use, short string
		run        func(s *store.DetailStore, cmd *cobra.Command, stepID string) (model.Step, error)
	}{
		{"activate", "Make a step the active one", func(s *store.DetailStore, cmd *cobra.Command, id string) (model.Step, error) {
			return s.ActivateStep(contextFor(cmd), id)
		}},
		{"complete", "Mark a step done", func(s *store.DetailStore, cmd *cobra.Command, id string) (model.Step, error) {
			return s.CompleteStep(contextFor(cmd), id)
		}},
	}
	for _, tr := range transitions {
		cmd.AddCommand(&cobra.Command{
			Use:   tr.use + " TASK STEP",
			Short: tr.short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := app.detailStore(args[0])
				if err != nil {
					return err
				}
				if _, err := tr.run(s, cmd, args[1]); err != nil {
					return notFound("step", err)
				}
				return app.printSteps(cmd, s)
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete TASK STEP",
		Short: "Delete a step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.confirmed("Delete step " + args[1] + "?"); err != nil {
				return err
			}
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteStep(contextFor(cmd), args[1]); err != nil {
				return notFound("step", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted step %s\n", args[1])
			return nil
		},
	})

	return cmd
}

func newUpdatesCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updates",
		Short: "Post and read dated progress notes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list TASK",
		Short: "List a task's progress notes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.FetchUpdates(contextFor(cmd)); err != nil {
				return notFound("task", err)
			}
			updates := s.Snapshot().Updates
			return app.emit(cmd, updates, func(w io.Writer) error {
				if len(updates) == 0 {
					_, err := fmt.Fprintln(w, "No updates.")
					return err
				}
				for _, u := range updates {
					note(w, fmt.Sprintf("%s  %s  (%s)", formatDate(u.UpdateDate), u.User.Label(), u.ID), u.UpdateText)
				}
				return nil
			})
		},
	})

	var date string
	add := &cobra.Command{
		Use:   "add TASK TEXT...",
		Short: "Post a progress note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextFor(cmd)
			now := app.now()
			day := now
			if date != "" {
				parsed, err := parseDate("date", date, now.Location())
				if err != nil {
					return err
				}
				day = *parsed
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			task, err := client.GetTask(ctx, args[0])
			if err != nil {
				return notFound("task", err)
			}
			s, err := app.detailStore(task.ID)
			if err != nil {
				return err
			}
			u, err := s.AddUpdate(ctx, task, strings.Join(args[1:], " "), day)
			if err != nil {
				return err
			}
			return app.emit(cmd, u, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Posted update %s\n", u.ID)
				return err
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "day the note is about (default today)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete TASK UPDATE",
		Short: "Delete a progress note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.confirmed("Delete update " + args[1] + "?"); err != nil {
				return err
			}
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteUpdate(contextFor(cmd), args[1]); err != nil {
				return notFound("update", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted update %s\n", args[1])
			return nil
		},
	})

	return cmd
}

func newActivityCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "activity TASK",
		Short: "Show a task's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.detailStore(args[0])
			if err != nil {
				return err
			}
			if err := s.FetchActivities(contextFor(cmd)); err != nil {
				return notFound("task", err)
			}
			activities := s.Snapshot().Activities
			return app.emit(cmd, activities, func(w io.Writer) error {
				if len(activities) == 0 {
					_, err := fmt.Fprintln(w, "No activity.")
					return err
				}
				for _, act := range activities {
					note(w, fmt.Sprintf("%s  %s  %s", formatTime(act.CreatedAt), act.User.Label(), act.Action), act.Description)
				}
				return nil
			})
		},
	}
}
