package auth

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// LocalhostAuthPort is the port the local callback listener binds by default.
const LocalhostAuthPort = "6789"

// BrowserFlow signs in through a provider's web page. It asks the backend
// for the provider URL, lets the user open it, and completes the session
// once the browser is redirected to a local listener.
type BrowserFlow struct {
	Session  *Session
	Provider string
	// Addr is the listener address. Defaults to localhost:6789.
	Addr    string
	Timeout time.Duration
	// Open shows the provider URL to the user. Defaults to printing it to Out.
	Open   func(url string) error
	Out    io.Writer
	Logger *log.Logger
}

// Run performs the whole flow and returns the signed-in user.
func (f *BrowserFlow) Run(ctx context.Context) (model.User, error) {
	addr := f.Addr
	if addr == "" {
		addr = "localhost:" + LocalhostAuthPort
	}
	logger := f.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cb, err := listenCallback(addr, "/oauth/callback", logger)
	if err != nil {
		return model.User{}, err
	}
	defer cb.Close()

	target, err := f.Session.OAuthURL(ctx, f.Provider, cb.RedirectURL())
	if err != nil {
		return model.User{}, err
	}
	target, state, err := withState(target)
	if err != nil {
		return model.User{}, fmt.Errorf("invalid provider URL: %w", err)
	}

	open := f.Open
	if open == nil {
		out := f.Out
		if out == nil {
			out = os.Stdout
		}
		open = func(u string) error {
			_, err := fmt.Fprintf(out, "Please open the following URL in your browser to sign in:\n%s\n", u)
			return err
		}
	}
	if err := open(target); err != nil {
		return model.User{}, err
	}
	logger.Println("Waiting for authorization code...")

	code, err := cb.wait(ctx, state, f.Timeout)
	if err != nil {
		return model.User{}, &Error{Op: "oauth", Message: "OAuth authentication failed", Err: err}
	}
	return f.Session.CompleteOAuth(ctx, f.Provider, code, state)
}

// withState returns target carrying a state parameter. A state chosen by the
// backend is kept, otherwise a random one is added.
func withState(target string) (string, string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", err
	}
	q := u.Query()
	state := q.Get("state")
	if state == "" {
		state = uuid.NewString()
		q.Set("state", state)
		u.RawQuery = q.Encode()
	}
	return u.String(), state, nil
}
