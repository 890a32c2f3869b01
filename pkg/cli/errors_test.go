package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/auth"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth error", &auth.Error{Op: "login", Message: "Login failed"}, "Login failed"},
		{"missing task", notFound("task", &api.Error{Status: http.StatusNotFound, Message: "Task not found"}), "task not found"},
		{"no session", fmt.Errorf("listing: %w", api.ErrNoSession), "not signed in, run `flowdesk login`"},
		{"expired", &api.Error{Status: http.StatusUnauthorized, Message: "Not authorized, token failed"}, "session expired, run `flowdesk login`"},
		{"bare 404", &api.Error{Status: http.StatusNotFound}, "not found"},
		{"server message", &api.Error{Status: http.StatusBadRequest, Message: "Title too long"}, "Title too long"},
		{"validation", api.Invalid("title", "is required"), "invalid input: title is required"},
		{"plain", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.err))
		})
	}
}

func TestNotFoundPassesOtherErrors(t *testing.T) {
	err := &api.Error{Status: http.StatusInternalServerError, Message: "down"}
	assert.Same(t, error(err), notFound("task", err))
	assert.NoError(t, notFound("task", nil))
}

func TestStdioPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewStdioPrompter(strings.NewReader("Y\nno\n  424242  \nlast"), &out)

	ok, err := p.Confirm("Delete?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm("Delete?")
	require.NoError(t, err)
	assert.False(t, ok)

	code, err := p.Ask("Code")
	require.NoError(t, err)
	assert.Equal(t, "424242", code)

	// A final line without a newline is still read.
	last, err := p.Ask("More")
	require.NoError(t, err)
	assert.Equal(t, "last", last)

	_, err = p.Ask("Again")
	assert.Error(t, err)

	assert.Equal(t, "Delete? [y/n]: Delete? [y/n]: Code: More: Again: ", out.String())
}

func TestUnreadLine(t *testing.T) {
	assert.Equal(t, "no unread notifications", unreadLine(0))
	assert.Equal(t, "1 unread notification", unreadLine(1))
	assert.Equal(t, "7 unread notifications", unreadLine(7))
}
