// Package orgmode reads tasks out of Org-mode outlines.
package orgmode

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// Entry is a task heading ready to be created.
type Entry struct {
	api.TaskInput
	Tags []string
	// Line is the 1-based line of the heading.
	Line int
}

var (
	headingRegex  = regexp.MustCompile(`^\*+\s+(TODO|NEXT|STARTED|WAITING|DONE)\s+(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+:([\w@:]+):)?\s*$`)
	planningRegex = regexp.MustCompile(`(SCHEDULED|DEADLINE):\s*<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]+)?(?:\s+(\d{1,2}:\d{2}))?[^>]*>`)
	anyHeading    = regexp.MustCompile(`^\*+\s`)
)

var keywords = map[string]model.Status{
	"TODO":    model.StatusNotStarted,
	"NEXT":    model.StatusInProgress,
	"STARTED": model.StatusInProgress,
	"WAITING": model.StatusPaused,
	"DONE":    model.StatusCompleted,
}

var priorities = map[string]model.Priority{
	"A": model.PriorityHigh,
	"B": model.PriorityMedium,
	"C": model.PriorityLow,
}

// ParseFile parses the Org-mode file at path.
func ParseFile(path string, loc *time.Location) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, loc)
}

// Parse reads task headings with their planning timestamps and body text.
// Timestamps are read in loc. Headings without a todo keyword end the
// current task but are not tasks themselves.
func Parse(r io.Reader, loc *time.Location) ([]Entry, error) {
	if loc == nil {
		loc = time.Local
	}
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current *Entry
	var body []string
	inDrawer := false
	lineNo := 0

	flush := func() {
		if current != nil && current.Title != "" {
			current.Description = strings.TrimSpace(strings.Join(body, "\n"))
			entries = append(entries, *current)
		}
		current = nil
		body = nil
		inDrawer = false
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if anyHeading.MatchString(raw) {
			flush()
			matches := headingRegex.FindStringSubmatch(raw)
			if matches == nil {
				continue
			}
			current = &Entry{Line: lineNo}
			current.Status = keywords[matches[1]]
			current.Priority = priorities[matches[2]]
			current.Title = strings.TrimSpace(matches[3])
			if matches[4] != "" {
				current.Tags = strings.Split(matches[4], ":")
			}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case line == ":PROPERTIES:" || line == ":LOGBOOK:":
			inDrawer = true
		case line == ":END:":
			inDrawer = false
		case inDrawer:
		case planningRegex.MatchString(line):
			for _, m := range planningRegex.FindAllStringSubmatch(line, -1) {
				ts, ok := parseStamp(m[2], m[3], loc)
				if !ok {
					continue
				}
				if m[1] == "SCHEDULED" {
					current.StartDate = &ts
				} else {
					current.EndDate = &ts
				}
			}
		default:
			body = append(body, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return entries, nil
}

func parseStamp(date, clock string, loc *time.Location) (time.Time, bool) {
	layout, value := "2006-01-02", date
	if clock != "" {
		layout, value = "2006-01-02 15:04", date+" "+clock
	}
	t, err := time.ParseInLocation(layout, value, loc)
	return t, err == nil
}

// FilterTasks keeps the entries tagged with tag.
func FilterTasks(entries []Entry, tag string) []Entry {
	var filtered []Entry
	for _, e := range entries {
		for _, t := range e.Tags {
			if t == tag {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}
