package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// DefaultCallbackTimeout bounds how long a browser flow waits for the redirect.
const DefaultCallbackTimeout = 5 * time.Minute

type callbackResult struct {
	code  string
	state string
}

// callbackServer captures a single OAuth redirect on a local listener.
type callbackServer struct {
	listener net.Listener
	server   *http.Server
	path     string
	results  chan callbackResult
	errs     chan error
}

func listenCallback(addr, path string, logger *log.Logger) (*callbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on %s: %w", addr, err)
	}
	cb := &callbackServer{
		listener: listener,
		path:     path,
		results:  make(chan callbackResult, 1),
		errs:     make(chan error, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, cb.handle)
	cb.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		logger.Printf("Local server listening on %s for OAuth redirect...", cb.RedirectURL())
		if err := cb.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cb.report(fmt.Errorf("HTTP server error: %w", err))
		}
	}()
	return cb, nil
}

func (cb *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		http.Error(w, "Authorization denied", http.StatusBadRequest)
		cb.report(fmt.Errorf("authorization denied: %s", msg))
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Authorization code not found", http.StatusBadRequest)
		cb.report(errors.New("authorization code not found in redirect URL"))
		return
	}
	fmt.Fprintf(w, "Authentication successful! You can close this window.")
	select {
	case cb.results <- callbackResult{code: code, state: q.Get("state")}:
	default:
	}
}

func (cb *callbackServer) report(err error) {
	select {
	case cb.errs <- err:
	default:
	}
}

// RedirectURL is the address the provider must send the browser back to.
func (cb *callbackServer) RedirectURL() string {
	return fmt.Sprintf("http://%s%s", cb.listener.Addr().String(), cb.path)
}

// wait blocks until the redirect arrives and returns its code. The redirect
// must carry wantState.
func (cb *callbackServer) wait(ctx context.Context, wantState string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-cb.results:
		if res.state != wantState {
			return "", errors.New("OAuth state mismatch, possible forged redirect")
		}
		return res.code, nil
	case err := <-cb.errs:
		return "", err
	case <-timer.C:
		return "", errors.New("authorization timed out. Please try again")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (cb *callbackServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cb.server.Shutdown(ctx)
}
