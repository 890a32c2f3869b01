package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNotFound matches 404 responses via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized matches 401 responses via errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation marks input rejected before any request is sent.
	ErrValidation = errors.New("invalid input")
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is match ErrNotFound and ErrUnauthorized.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Message returns the server-provided message carried by err, or fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	return fallback
}

// Invalid builds a validation error for field.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

func readErrorResponse(resp *http.Response) *Error {
	apiErr := &Error{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(payload.Error)
		}
	}
	return apiErr
}
