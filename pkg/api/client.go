// Package api is the HTTP/JSON client for the task backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoSession is returned by a TokenSource when nobody is signed in.
var ErrNoSession = errors.New("not signed in")

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. "https://tasks.example.com/api".
	BaseURL string
	// Tokens supplies the bearer token for authenticated endpoints.
	Tokens oauth2.TokenSource
	// OnUnauthorized is called whenever the backend answers 401.
	OnUnauthorized func()
	// HTTPClient is the base client. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	Logger     *log.Logger
	// Verbose logs every request.
	Verbose bool
}

// Client calls the task backend.
type Client struct {
	baseURL        string
	anon           *http.Client
	authed         *http.Client
	onUnauthorized func()
	logger         *log.Logger
	verbose        bool
}

// NewClient creates a client for the given options.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	authed := base
	if opts.Tokens != nil {
		transport := base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		authed = &http.Client{
			Timeout:   base.Timeout,
			Transport: &oauth2.Transport{Source: opts.Tokens, Base: transport},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		baseURL:        baseURL,
		anon:           base,
		authed:         authed,
		onUnauthorized: opts.OnUnauthorized,
		logger:         logger,
		verbose:        opts.Verbose,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// public requests are sent without the bearer token.
	public bool
}

func (c *Client) do(ctx context.Context, r request, dest any) error {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.authed
	if r.public {
		client = c.anon
	}

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	if c.verbose {
		c.logger.Printf("%s %s -> %d (%s)", r.method, r.path, resp.StatusCode, time.Since(started).Round(time.Millisecond))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := readErrorResponse(resp)
		if apiErr.Status == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apiErr
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// envelope is the `{data}` wrapper most endpoints answer with.
type envelope[T any] struct {
	Data T `json:"data"`
}

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out envelope[T]
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: query}, &out)
	return out.Data, err
}

func send[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out envelope[T]
	err := c.do(ctx, request{method: method, path: path, body: body}, &out)
	return out.Data, err
}

func pathID(id string) string {
	return url.PathEscape(id)
}
