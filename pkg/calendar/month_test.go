package calendar

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

func due(id, title string, status model.Status, y int, m time.Month, d int) model.Task {
	return model.Task{
		ID:      id,
		Title:   title,
		Status:  status,
		EndDate: model.NewTime(time.Date(y, m, d, 17, 0, 0, 0, time.UTC)),
	}
}

func fixture() []model.Task {
	return []model.Task{
		due("t1", "Write report", model.StatusInProgress, 2024, time.January, 10),
		due("t2", "Review PR", model.StatusNotStarted, 2024, time.January, 10),
		due("t3", "Ship release", model.StatusCompleted, 2024, time.January, 22),
		due("t4", "Plan offsite", model.StatusNotStarted, 2024, time.February, 2),
		{ID: "t5", Title: "Someday", Status: model.StatusNotStarted},
	}
}

var now = time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC)

func TestBuild(t *testing.T) {
	m := Build(2024, time.January, fixture(), now)

	require.Len(t, m.Weeks, 5)
	for _, week := range m.Weeks {
		require.Len(t, week, 7)
	}

	first := m.Weeks[0][0]
	assert.False(t, first.InMonth)
	assert.Equal(t, 31, first.Date.Day())
	assert.Equal(t, time.Sunday, first.Date.Weekday())

	days := m.Days()
	require.Len(t, days, 31)
	assert.True(t, days[8].Today)
	assert.Len(t, days[9].Tasks, 2)
	assert.Len(t, days[21].Tasks, 1)

	last := m.Weeks[4][6]
	assert.False(t, last.InMonth)
	assert.Len(t, last.Tasks, 0)
	assert.Len(t, m.Weeks[4][5].Tasks, 1, "out-of-month days still carry their tasks")
}

func TestTasksOnUsesDateLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	tasks := fixture()

	// 17:00 UTC on the 10th is already the 11th in Tokyo.
	assert.Empty(t, TasksOn(tasks, time.Date(2024, time.January, 10, 0, 0, 0, 0, tokyo)))
	assert.Len(t, TasksOn(tasks, time.Date(2024, time.January, 11, 0, 0, 0, 0, tokyo)), 2)
}

func TestRender(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "january_2024", []byte(Render(Build(2024, time.January, fixture(), now))))
}
