package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/flowdesk/pkg/auth"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

func (a *App) readPassword(prompt string) (string, error) {
	if a.Password != nil {
		return a.Password(prompt)
	}
	return terminalPassword(prompt)
}

func (a *App) signedIn(cmd *cobra.Command, user model.User) error {
	return a.emit(cmd, user, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Signed in as %s <%s>\n", user.Name, user.Email)
		return err
	})
}

func newLoginCommand(app *App) *cobra.Command {
	var code string
	var usePassword bool

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in with an emailed code or a password",
		Long: "Sign in with an emailed one-time code or a password.\n\n" +
			"Without --code or --password a code is sent to EMAIL and read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextFor(cmd)
			email := args[0]

			var cred auth.Credential
			switch {
			case usePassword:
				pw, err := app.readPassword("Password: ")
				if err != nil {
					return err
				}
				cred = auth.Password(pw)
			case code != "":
				cred = auth.OneTimeCode(code)
			default:
				msg, err := app.session.SendOneTimeCode(ctx, email)
				if err != nil {
					return err
				}
				if msg != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				entered, err := app.Prompter.Ask("Code")
				if err != nil {
					return err
				}
				cred = auth.OneTimeCode(entered)
			}

			user, err := app.session.Login(ctx, email, cred)
			if err != nil {
				return err
			}
			return app.signedIn(cmd, user)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "one-time code received by email")
	cmd.Flags().BoolVar(&usePassword, "password", false, "sign in with a password read from the terminal")
	cmd.MarkFlagsMutuallyExclusive("code", "password")
	return cmd
}

func newRegisterCommand(app *App) *cobra.Command {
	var usePassword bool

	cmd := &cobra.Command{
		Use:   "register NAME EMAIL",
		Short: "Create an account and sign in to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if usePassword {
				var err error
				if pw, err = app.readPassword("Choose a password: "); err != nil {
					return err
				}
			}
			user, err := app.session.Register(contextFor(cmd), args[0], args[1], pw)
			if err != nil {
				return err
			}
			return app.signedIn(cmd, user)
		},
	}

	cmd.Flags().BoolVar(&usePassword, "password", false, "set a password (otherwise sign in with emailed codes)")
	return cmd
}

func newSendCodeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "send-code EMAIL",
		Short: "Email a one-time sign-in code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := app.session.SendOneTimeCode(contextFor(cmd), args[0])
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Code sent to " + args[0]
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newOAuthCommand(app *App) *cobra.Command {
	var token, addr string

	cmd := &cobra.Command{
		Use:   "oauth PROVIDER",
		Short: "Sign in through an identity provider such as google",
		Long: "Sign in through an identity provider.\n\n" +
			"With --token an ID token already issued by the provider is exchanged directly.\n" +
			"Otherwise the provider page is opened and the redirect is caught on a local port.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextFor(cmd)
			provider := args[0]

			var user model.User
			var err error
			if token != "" {
				user, err = app.session.OAuthLogin(ctx, provider, token)
			} else {
				flow := &auth.BrowserFlow{
					Session:  app.session,
					Provider: provider,
					Addr:     addr,
					Open:     app.OpenURL,
					Out:      cmd.ErrOrStderr(),
					Logger:   app.Logger,
				}
				user, err = flow.Run(ctx)
			}
			if err != nil {
				return err
			}
			return app.signedIn(cmd, user)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "provider-issued ID token")
	cmd.Flags().StringVar(&addr, "addr", "", "callback listener address (default localhost:"+auth.LocalhostAuthPort+")")
	return cmd
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := app.session.User().ID
			app.session.Logout()
			if db := app.openCache(); db != nil && userID != "" {
				if err := db.For(userID).Clear(); err != nil {
					app.Logger.Printf("Warning: could not clear offline cache: %v", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.client(); err != nil {
				return err
			}
			user, err := app.session.Refresh(contextFor(cmd))
			if err != nil {
				return err
			}
			return app.emit(cmd, user, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s <%s>\nrole: %s\nid:   %s\n", user.Name, user.Email, orDash(user.Role), user.ID)
				return err
			})
		},
	}
}
