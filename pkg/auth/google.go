package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/flowdesk/pkg/config"
)

const (
	// ClientSecretsFile is the Google API credentials.json, read from the config dir.
	ClientSecretsFile = "credentials.json"
	// GoogleTokenFile caches the Google access and refresh tokens in the config dir.
	GoogleTokenFile = "google-token.json"

	googleCallbackPath = "/oauth2callback"
)

// GoogleAuth authorizes calendar access on the user's Google account.
type GoogleAuth struct {
	// Dir holds credentials.json and the token cache. Defaults to config.Dir().
	Dir    string
	Out    io.Writer
	Logger *log.Logger
}

func (g *GoogleAuth) dir() (string, error) {
	if g.Dir != "" {
		return g.Dir, nil
	}
	return config.Dir()
}

func (g *GoogleAuth) logger() *log.Logger {
	if g.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return g.Logger
}

// TokenPath is where the Google token is cached.
func (g *GoogleAuth) TokenPath() (string, error) {
	dir, err := g.dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, GoogleTokenFile), nil
}

// Config reads the client secrets and pins the redirect to the local listener.
func (g *GoogleAuth) Config(scopes ...string) (*oauth2.Config, error) {
	dir, err := g.dir()
	if err != nil {
		return nil, err
	}
	secrets := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(secrets)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", secrets, err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	cfg.RedirectURL = localRedirect(cfg.RedirectURL, g.logger())
	return cfg, nil
}

// localRedirect forces the redirect onto the local callback listener. Desktop
// credentials come with either a bare localhost URL or the out-of-band URN.
func localRedirect(raw string, logger *log.Logger) string {
	want := fmt.Sprintf("http://localhost:%s%s", LocalhostAuthPort, googleCallbackPath)
	if raw == "" || raw == "urn:ietf:wg:oauth:2.0:oob" {
		return want
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		logger.Printf("Warning: Could not parse RedirectURL '%s': %v. Using %s.", raw, err, want)
		return want
	}
	if parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
		logger.Printf("Warning: Configured RedirectURL in credentials.json is not a localhost callback: %s. Using %s.", raw, want)
		return want
	}
	if parsed.Port() != "" && parsed.Port() != LocalhostAuthPort {
		logger.Printf("Warning: Mismatch in localhost redirect port. credentials.json has '%s', forcing '%s'.", parsed.Port(), LocalhostAuthPort)
	}
	parsed.Host = parsed.Hostname() + ":" + LocalhostAuthPort
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = googleCallbackPath
	}
	return parsed.String()
}

// Client returns an HTTP client carrying the Google token, running the
// browser consent flow when no cached token exists. Refreshed tokens are
// written back to the cache.
func (g *GoogleAuth) Client(ctx context.Context, scopes ...string) (*http.Client, error) {
	cfg, err := g.Config(scopes...)
	if err != nil {
		return nil, err
	}
	path, err := g.TokenPath()
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(path)
	if err != nil {
		g.logger().Printf("No existing token found at %s. Initiating web authorization flow...", path)
		tok, err = g.tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(path, tok); err != nil {
			return nil, err
		}
	}
	src := &savingSource{
		base:   cfg.TokenSource(ctx, tok),
		path:   path,
		last:   tok,
		logger: g.logger(),
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// CalendarService returns an authorized Google Calendar service.
func (g *GoogleAuth) CalendarService(ctx context.Context) (*calendar.Service, error) {
	client, err := g.Client(ctx, calendar.CalendarEventsScope, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client for Calendar API: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}

// Reset removes the cached Google token so the next use asks for consent again.
func (g *GoogleAuth) Reset() error {
	path, err := g.TokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file '%s': %w", path, err)
	}
	return nil
}

func (g *GoogleAuth) tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return nil, err
	}
	cb, err := listenCallback(redirect.Host, redirect.Path, g.logger())
	if err != nil {
		return nil, err
	}
	defer cb.Close()

	state := uuid.NewString()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	out := g.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Please open the following URL in your browser to authorize calendar access:\n%s\n", authURL)

	code, err := cb.wait(ctx, state, DefaultCallbackTimeout)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
	}
	return tok, nil
}

// savingSource persists the token whenever the underlying source refreshes it.
type savingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	path   string
	last   *oauth2.Token
	logger *log.Logger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Printf("Warning: could not save refreshed token: %v", err)
		}
		s.last = tok
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
