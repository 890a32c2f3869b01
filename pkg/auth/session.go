// Package auth holds the signed-in session and the OAuth browser flows.
package auth

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// Error is a failed authentication operation. Message is safe to show.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Credential is the secret a login is made with. Exactly one field is set.
type Credential struct {
	OTP      string
	Password string
}

// OneTimeCode builds a credential from an emailed code.
func OneTimeCode(code string) Credential { return Credential{OTP: strings.TrimSpace(code)} }

// Password builds a password credential.
func Password(pw string) Credential { return Credential{Password: pw} }

// Session is the signed-in state shared by the API client and the stores.
// It is safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	token   string
	user    model.User
	storage Storage
	client  *api.Client
	logger  *log.Logger
	now     func() time.Time
}

// NewSession builds a session and the API client bound to it. The client
// reads its bearer token from the session and clears it on any 401.
func NewSession(storage Storage, opts api.Options) *Session {
	if storage == nil {
		storage = &MemoryStorage{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Session{storage: storage, logger: logger, now: time.Now}
	opts.Tokens = s
	opts.OnUnauthorized = s.Clear
	s.client = api.NewClient(opts)
	return s
}

// Client returns the API client authenticated by this session.
func (s *Session) Client() *api.Client {
	return s.client
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return nil, api.ErrNoSession
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// User returns the signed-in user, or the zero User.
func (s *Session) User() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Login signs in with an email and a one-time code or password.
func (s *Session) Login(ctx context.Context, email string, cred Credential) (model.User, error) {
	const fallback = "Login failed"
	email = strings.TrimSpace(email)
	if email == "" {
		return model.User{}, s.fail("login", fallback, api.Invalid("email", "is required"))
	}
	if cred.OTP == "" && cred.Password == "" {
		return model.User{}, s.fail("login", fallback, api.Invalid("credential", "is required"))
	}
	resp, err := s.client.Login(ctx, api.LoginRequest{Email: email, OTP: cred.OTP, Password: cred.Password})
	if err != nil {
		return model.User{}, s.fail("login", fallback, err)
	}
	return s.establish("login", fallback, resp)
}

// Register creates an account and signs in to it. password may be empty for
// accounts that only use one-time codes.
func (s *Session) Register(ctx context.Context, name, email, password string) (model.User, error) {
	const fallback = "Registration failed"
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return model.User{}, s.fail("register", fallback, api.Invalid("name", "is required"))
	}
	if email == "" {
		return model.User{}, s.fail("register", fallback, api.Invalid("email", "is required"))
	}
	resp, err := s.client.Register(ctx, api.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return model.User{}, s.fail("register", fallback, err)
	}
	return s.establish("register", fallback, resp)
}

// SendOneTimeCode asks the backend to email a login code and returns its
// acknowledgement message.
func (s *Session) SendOneTimeCode(ctx context.Context, email string) (string, error) {
	const fallback = "Failed to send OTP"
	email = strings.TrimSpace(email)
	if email == "" {
		return "", s.fail("send-otp", fallback, api.Invalid("email", "is required"))
	}
	msg, err := s.client.SendOTP(ctx, email)
	if err != nil {
		return "", s.fail("send-otp", fallback, err)
	}
	return msg, nil
}

// OAuthURL returns the provider page that starts an OAuth sign-in.
func (s *Session) OAuthURL(ctx context.Context, provider, redirectURI string) (string, error) {
	target, err := s.client.OAuthURL(ctx, provider, redirectURI)
	if err != nil {
		return "", s.fail("oauth", provider+" login failed", err)
	}
	return target, nil
}

// CompleteOAuth exchanges the provider callback's code and state for a session.
func (s *Session) CompleteOAuth(ctx context.Context, provider, code, state string) (model.User, error) {
	const fallback = "OAuth authentication failed"
	if code == "" {
		return model.User{}, s.fail("oauth", fallback, api.Invalid("code", "is required"))
	}
	resp, err := s.client.OAuthCallback(ctx, provider, code, state)
	if err != nil {
		return model.User{}, s.fail("oauth", fallback, err)
	}
	return s.establish("oauth", fallback, resp)
}

// OAuthLogin exchanges a token issued by the provider itself for a session.
func (s *Session) OAuthLogin(ctx context.Context, provider, providerToken string) (model.User, error) {
	fallback := provider + " login failed"
	if providerToken == "" {
		return model.User{}, s.fail("oauth", fallback, api.Invalid("token", "is required"))
	}
	resp, err := s.client.OAuthLogin(ctx, provider, providerToken)
	if err != nil {
		return model.User{}, s.fail("oauth", fallback, err)
	}
	return s.establish("oauth", fallback, resp)
}

// Refresh reloads the signed-in user from the backend and persists it.
func (s *Session) Refresh(ctx context.Context) (model.User, error) {
	user, err := s.client.Me(ctx)
	if err != nil {
		return model.User{}, s.fail("me", "Failed to load profile", err)
	}
	s.mu.Lock()
	s.user = user
	snap := Snapshot{Token: s.token, User: user}
	s.mu.Unlock()
	if err := s.storage.Save(snap); err != nil {
		s.logger.Printf("Warning: could not persist session: %v", err)
	}
	return user, nil
}

// Rehydrate restores a persisted session. A token whose JWT exp claim has
// passed is discarded. Tokens that are not JWTs are kept as-is.
func (s *Session) Rehydrate() (model.User, bool) {
	snap, err := s.storage.Load()
	if err != nil {
		s.logger.Printf("Warning: could not read saved session: %v", err)
		return model.User{}, false
	}
	if snap.Token == "" {
		return model.User{}, false
	}
	if expired(snap.Token, s.now()) {
		s.logger.Printf("Saved session expired, signing out")
		s.Clear()
		return model.User{}, false
	}
	s.mu.Lock()
	s.token, s.user = snap.Token, snap.User
	s.mu.Unlock()
	return snap.User, true
}

// Logout forgets the token and the persisted snapshot.
func (s *Session) Logout() {
	s.Clear()
}

// Clear drops the in-memory and persisted session. The API client calls it
// on every 401.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token, s.user = "", model.User{}
	s.mu.Unlock()
	if err := s.storage.Clear(); err != nil {
		s.logger.Printf("Warning: could not remove saved session: %v", err)
	}
}

func (s *Session) establish(op, fallback string, resp api.AuthResponse) (model.User, error) {
	if resp.Token == "" {
		return model.User{}, &Error{Op: op, Message: fallback}
	}
	s.mu.Lock()
	s.token, s.user = resp.Token, resp.User
	s.mu.Unlock()
	if err := s.storage.Save(Snapshot{Token: resp.Token, User: resp.User}); err != nil {
		s.logger.Printf("Warning: could not persist session: %v", err)
	}
	return resp.User, nil
}

func (s *Session) fail(op, fallback string, err error) error {
	return &Error{Op: op, Message: api.Message(err, fallback), Err: err}
}

func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
