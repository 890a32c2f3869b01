// Package cli is the flowdesk command line front end.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/auth"
	"github.com/harrisonrobin/flowdesk/pkg/cache"
	"github.com/harrisonrobin/flowdesk/pkg/config"
	"github.com/harrisonrobin/flowdesk/pkg/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Output  string // "table" | "json" | "yaml"
	APIURL  string
	Yes     bool
	Offline bool
}

// ValidOutputs defines the allowed output formats.
var ValidOutputs = []string{"table", "json", "yaml"}

// App carries what commands share: options, I/O, config and the session.
type App struct {
	Opts     *RootOptions
	In       io.Reader
	Logger   *log.Logger
	Prompter Prompter
	// Password reads a secret without echo. Defaults to the terminal.
	Password func(prompt string) (string, error)
	// OpenURL shows a sign-in page. Defaults to printing it.
	OpenURL func(url string) error
	Now     func() time.Time

	cfg     *config.Config
	dir     string
	session *auth.Session
	cache   *cache.DB
}

// NewApp returns an App wired to the process's stdin.
func NewApp(logger *log.Logger) *App {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &App{
		Opts:   &RootOptions{},
		In:     os.Stdin,
		Logger: logger,
		Now:    time.Now,
	}
}

// NewRootCommand creates the root command.
func NewRootCommand(app *App) *cobra.Command {
	opts := app.Opts

	cmd := &cobra.Command{
		Use:           "flowdesk",
		Short:         "flowdesk - tasks, progress and notifications from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidOutput(opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every API request")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "table", "output format (table|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "backend API root (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "show the cached task list without calling the backend")

	cmd.AddCommand(newLoginCommand(app))
	cmd.AddCommand(newRegisterCommand(app))
	cmd.AddCommand(newSendCodeCommand(app))
	cmd.AddCommand(newOAuthCommand(app))
	cmd.AddCommand(newLogoutCommand(app))
	cmd.AddCommand(newWhoamiCommand(app))
	cmd.AddCommand(newTasksCommand(app))
	cmd.AddCommand(newCommentsCommand(app))
	cmd.AddCommand(newStepsCommand(app))
	cmd.AddCommand(newUpdatesCommand(app))
	cmd.AddCommand(newActivityCommand(app))
	cmd.AddCommand(newNotificationsCommand(app))
	cmd.AddCommand(newUsersCommand(app))
	cmd.AddCommand(newCalendarCommand(app))
	cmd.AddCommand(newConfigCommand(app))

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(app *App, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(app)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", describe(err))
		return 1
	}
	return 0
}

func isValidOutput(output string) bool {
	for _, o := range ValidOutputs {
		if o == output {
			return true
		}
	}
	return false
}

// setup loads the config (flag > config > default) and restores the saved
// session.
func (a *App) setup(cmd *cobra.Command) error {
	dir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("could not find path to configuration directory: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.Opts.APIURL != "" {
		cfg.APIURL = a.Opts.APIURL
	}
	a.cfg, a.dir = cfg, dir

	if a.Prompter == nil {
		a.Prompter = NewStdioPrompter(a.In, cmd.ErrOrStderr())
	}
	a.session = auth.NewSession(auth.NewFileStorage(dir), api.Options{
		BaseURL: cfg.APIURL,
		Logger:  a.Logger,
		Verbose: a.Opts.Verbose,
	})
	a.session.Rehydrate()
	return nil
}

func (a *App) close() error {
	if a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// client returns the API client, failing early when nobody is signed in.
func (a *App) client() (*api.Client, error) {
	if !a.session.IsAuthenticated() {
		return nil, api.ErrNoSession
	}
	return a.session.Client(), nil
}

// taskStore builds a task store backed by the offline cache of the current user.
func (a *App) taskStore() (*store.TaskStore, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	s := store.NewTaskStore(client, a.Logger)
	if db := a.openCache(); db != nil {
		s.UseCache(db.For(a.session.User().ID))
	}
	return s, nil
}

func (a *App) openCache() *cache.DB {
	if a.cache != nil {
		return a.cache
	}
	db, err := cache.OpenDir(a.dir)
	if err != nil {
		a.Logger.Printf("Warning: offline cache unavailable: %v", err)
		return nil
	}
	a.cache = db
	return db
}

func (a *App) confirm(message string) (bool, error) {
	if a.Opts.Yes {
		return true, nil
	}
	return a.Prompter.Confirm(message)
}

func contextFor(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
