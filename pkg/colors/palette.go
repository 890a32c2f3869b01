// Package colors maps progress classifications onto the palettes of the
// places tasks are shown: the terminal and Google Calendar.
package colors

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/harrisonrobin/flowdesk/pkg/progress"
)

// Swatch is one progress color expressed for every output.
type Swatch struct {
	Hex string
	// CalendarID is a Google Calendar event colorId ("1".."11").
	CalendarID string
}

var swatches = map[progress.Color]Swatch{
	progress.ColorCompleted: {Hex: "#34c759", CalendarID: "10"}, // Basil
	progress.ColorHealthy:   {Hex: "#34c759", CalendarID: "2"},  // Sage
	progress.ColorCaution:   {Hex: "#ffcc00", CalendarID: "5"},  // Banana
	progress.ColorWarning:   {Hex: "#ff9500", CalendarID: "6"},  // Tangerine
	progress.ColorCritical:  {Hex: "#ff3b30", CalendarID: "11"}, // Tomato
	progress.ColorDefault:   {Hex: "#0071e3", CalendarID: "9"},  // Blueberry
}

// For returns the swatch of c, falling back to the default color.
func For(c progress.Color) Swatch {
	if s, ok := swatches[c]; ok {
		return s
	}
	return swatches[progress.ColorDefault]
}

// CalendarID returns the Google Calendar colorId for c.
func CalendarID(c progress.Color) string {
	return For(c).CalendarID
}

// Style returns a terminal style rendering text in c.
func Style(c progress.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(For(c).Hex))
}

// Bar renders a fixed-width progress bar filled to pct and tinted by c.
func Bar(pct float64, width int, c progress.Color) string {
	if width <= 0 {
		return ""
	}
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}
	return Style(c).Render(string(bar))
}
