package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

const defaultWidth = 80

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// emit writes value in the selected output format. The table format is
// drawn by text.
func (a *App) emit(cmd *cobra.Command, value any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	switch a.Opts.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml":
		plain, err := toPlain(value)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plain); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// toPlain round-trips value through JSON so YAML output uses the same field
// names and date formats as the API.
func toPlain(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}

// renderTable draws rows under headers.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// markdown renders text for w using the configured theme. Writers that are
// not terminals get the plain style.
func (a *App) markdown(w io.Writer, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	style := styles.NoTTYStyle
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		style = a.cfg.Theme
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(terminalWidth(w)-4),
	)
	if err != nil {
		a.Logger.Printf("Warning: markdown renderer unavailable: %v", err)
		return wrap(text, terminalWidth(w))
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return wrap(text, terminalWidth(w))
	}
	return strings.TrimRight(rendered, "\n")
}

func wrap(text string, width int) string {
	return wordwrap.String(strings.TrimSpace(text), width)
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func formatDate(t model.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.DateIn(time.Local).Format("2006-01-02")
}

func formatTime(t model.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func names(users []model.UserRef) string {
	if len(users) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(users))
	for _, u := range users {
		labels = append(labels, u.Label())
	}
	return strings.Join(labels, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
