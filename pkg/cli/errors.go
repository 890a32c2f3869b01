package cli

import (
	"errors"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/auth"
)

// errCancelled is returned when the user declines a confirmation.
var errCancelled = errors.New("cancelled")

// missingError names the kind of record a 404 was about.
type missingError struct {
	kind string
	err  error
}

func (e *missingError) Error() string { return e.kind + " not found" }

func (e *missingError) Unwrap() error { return e.err }

// notFound tags a 404 with the record kind. Other errors pass through.
func notFound(kind string, err error) error {
	if api.IsNotFound(err) {
		return &missingError{kind: kind, err: err}
	}
	return err
}

// describe turns an error into the line shown to the user.
func describe(err error) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	var missing *missingError
	if errors.As(err, &missing) {
		return missing.Error()
	}
	switch {
	case errors.Is(err, api.ErrNoSession):
		return "not signed in, run `flowdesk login`"
	case api.IsUnauthorized(err):
		return "session expired, run `flowdesk login`"
	case api.IsNotFound(err):
		return "not found"
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
