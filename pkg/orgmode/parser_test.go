package orgmode

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

func TestParseFile(t *testing.T) {
	entries, err := ParseFile("testdata/plan.org", time.UTC)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	report := entries[0]
	assert.Equal(t, "Write report", report.Title)
	assert.Equal(t, model.StatusNotStarted, report.Status)
	assert.Equal(t, model.PriorityHigh, report.Priority)
	assert.Equal(t, []string{"work", "finance"}, report.Tags)
	assert.Equal(t, 4, report.Line)
	require.NotNil(t, report.StartDate)
	require.NotNil(t, report.EndDate)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), *report.StartDate)
	assert.Equal(t, time.Date(2024, time.January, 10, 17, 0, 0, 0, time.UTC), *report.EndDate)
	assert.Equal(t, "Quarterly numbers for the board.\nInclude the churn chart.", report.Description)
	assert.NoError(t, report.Validate())

	review := entries[1]
	assert.Equal(t, model.StatusCompleted, review.Status)
	assert.Equal(t, model.Priority(""), review.Priority)
	assert.Nil(t, review.StartDate)
	require.NotNil(t, review.EndDate)
	assert.Equal(t, time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), *review.EndDate)
	assert.Contains(t, review.Description, "CLOSED:")

	assert.Equal(t, model.StatusPaused, entries[2].Status)
	assert.Equal(t, model.PriorityLow, entries[2].Priority)
	assert.Empty(t, entries[2].Description)

	assert.Equal(t, "Plan offsite", entries[3].Title)
	assert.NotContains(t, entries[2].Description, "Loose text")
}

func TestParseUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	entries, err := Parse(strings.NewReader("* TODO Ship\n  DEADLINE: <2024-02-01 Thu 09:30>\n"), tokyo)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 30, 0, 0, time.UTC), entries[0].EndDate.UTC())
}

func TestFilterTasks(t *testing.T) {
	entries, err := ParseFile("testdata/plan.org", time.UTC)
	require.NoError(t, err)

	work := FilterTasks(entries, "work")
	require.Len(t, work, 2)
	assert.Equal(t, "Write report", work[0].Title)
	assert.Equal(t, "Review PR", work[1].Title)

	assert.Empty(t, FilterTasks(entries, "missing"))
}
