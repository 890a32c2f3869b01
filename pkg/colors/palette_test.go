package colors

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/harrisonrobin/flowdesk/pkg/progress"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestEveryColorHasASwatch(t *testing.T) {
	for _, c := range []progress.Color{
		progress.ColorCompleted, progress.ColorHealthy, progress.ColorCaution,
		progress.ColorWarning, progress.ColorCritical, progress.ColorDefault,
	} {
		s := For(c)
		assert.NotEmpty(t, s.Hex, c)
		assert.NotEmpty(t, s.CalendarID, c)
	}
}

func TestUnknownColorFallsBack(t *testing.T) {
	assert.Equal(t, For(progress.ColorDefault), For(progress.Color("plaid")))
}

func TestBarWidth(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	assert.Equal(t, "█████░░░░░", Bar(50, 10, progress.ColorHealthy))
	assert.Equal(t, "██████████", Bar(130, 10, progress.ColorCompleted))
	assert.Equal(t, "", Bar(50, 0, progress.ColorHealthy))
}
