package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// AuthResponse is returned by every endpoint that opens a session.
type AuthResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// LoginRequest signs in with either a one-time code or a password.
type LoginRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp,omitempty"`
	Password string `json:"password,omitempty"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, in LoginRequest) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: in, public: true}, &out)
	return out, err
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: in, public: true}, &out)
	return out, err
}

// SendOTP asks the backend to email a one-time login code.
func (c *Client) SendOTP(ctx context.Context, email string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]string{"email": email}
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/send-otp", body: body, public: true}, &out)
	return out.Message, err
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var out struct {
		User model.User `json:"user"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &out)
	return out.User, err
}

// OAuthURL returns the identity provider URL that starts an OAuth sign-in.
// redirectURI is forwarded when the caller runs its own callback listener.
func (c *Client) OAuthURL(ctx context.Context, provider, redirectURI string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	query := url.Values{}
	if redirectURI != "" {
		query.Set("redirect_uri", redirectURI)
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/oauth/" + pathID(provider), query: query, public: true}, &out)
	return out.URL, err
}

// OAuthCallback exchanges the provider's code for a session.
func (c *Client) OAuthCallback(ctx context.Context, provider, code, state string) (AuthResponse, error) {
	var out AuthResponse
	query := url.Values{"code": {code}, "state": {state}}
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/oauth/" + pathID(provider) + "/callback", query: query, public: true}, &out)
	return out, err
}

// OAuthLogin exchanges a provider-issued token (e.g. a Google ID token) for a session.
func (c *Client) OAuthLogin(ctx context.Context, provider, token string) (AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"token": token}
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/oauth/" + pathID(provider) + "/login", body: body, public: true}, &out)
	return out, err
}
