package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/flowdesk/pkg/index"
	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/overdue"
)

func newSyncer(t *testing.T, now time.Time) (*Syncer, *fakeCalendar) {
	t.Helper()
	fake, srv := newFakeCalendar(t)
	dir := t.TempDir()
	idx, err := index.NewEventIndex(dir, "cal-1")
	require.NoError(t, err)
	table, err := overdue.NewTable(dir, "cal-1")
	require.NoError(t, err)
	return &Syncer{
		Client: NewCalendarClient(srv, "cal-1", idx),
		Index:  idx,
		Table:  table,
		Now:    func() time.Time { return now },
	}, fake
}

func TestFindCalendar(t *testing.T) {
	_, srv := newFakeCalendar(t)

	id, err := FindCalendar(context.Background(), srv, "Flowdesk")
	require.NoError(t, err)
	assert.Equal(t, "cal-1", id)

	_, err = FindCalendar(context.Background(), srv, "Missing")
	assert.ErrorContains(t, err, "calendar 'Missing' not found")
}

func TestSyncCreatesThenPatches(t *testing.T) {
	ctx := context.Background()
	s, fake := newSyncer(t, time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC))

	undated := model.Task{ID: "t2", Title: "Someday", Status: model.StatusNotStarted}
	report, err := s.Sync(ctx, []model.Task{reportTask(), undated})
	require.NoError(t, err)
	assert.Equal(t, Report{Created: 1, Skipped: 1}, report)

	eventID := s.Index.Get("t1")
	require.NotEmpty(t, eventID)
	assert.Equal(t, "‣ Write report", fake.event(eventID).Summary)

	report, err = s.Sync(ctx, []model.Task{reportTask()})
	require.NoError(t, err)
	assert.Equal(t, Report{Unchanged: 1}, report)

	renamed := reportTask()
	renamed.Title = "Write final report"
	report, err = s.Sync(ctx, []model.Task{renamed})
	require.NoError(t, err)
	assert.Equal(t, Report{Updated: 1}, report)
	assert.Equal(t, "‣ Write final report", fake.event(eventID).Summary)
	assert.Equal(t, 1, fake.count())
}

func TestSyncFindsEventWithoutIndex(t *testing.T) {
	ctx := context.Background()
	s, fake := newSyncer(t, time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC))

	_, err := s.Sync(ctx, []model.Task{reportTask()})
	require.NoError(t, err)
	s.Index.Remove("t1")

	report, err := s.Sync(ctx, []model.Task{reportTask()})
	require.NoError(t, err)
	assert.Equal(t, Report{Unchanged: 1}, report)
	assert.Equal(t, 1, fake.count())
	assert.NotEmpty(t, s.Index.Get("t1"))
}

func TestSyncFlagsTasksThatWentOverdue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC)
	s, fake := newSyncer(t, now)

	_, err := s.Sync(ctx, []model.Task{reportTask()})
	require.NoError(t, err)
	require.Equal(t, 1, s.Table.Len())

	now = time.Date(2024, time.January, 12, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	report, err := s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, "! Write report", fake.event(s.Index.Get("t1")).Summary)
	assert.Zero(t, s.Table.Len())
}

func TestSyncDropsCompletedFromTable(t *testing.T) {
	ctx := context.Background()
	s, _ := newSyncer(t, time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC))

	_, err := s.Sync(ctx, []model.Task{reportTask()})
	require.NoError(t, err)
	require.Equal(t, 1, s.Table.Len())

	done := reportTask()
	done.Status = model.StatusCompleted
	report, err := s.Sync(ctx, []model.Task{done})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, s.Table.Len())
}

func TestSyncPrune(t *testing.T) {
	ctx := context.Background()
	s, fake := newSyncer(t, time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC))

	_, err := s.Sync(ctx, []model.Task{reportTask()})
	require.NoError(t, err)

	report, err := s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Removed, "prune is opt-in")
	assert.Equal(t, 1, fake.count())

	s.Prune = true
	report, err = s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 0, fake.count())
	assert.Empty(t, s.Index.TaskIDs())
	assert.Zero(t, s.Table.Len())
}

func TestSyncLeavesTasksDueTodayUnflagged(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC)
	s, fake := newSyncer(t, now)

	ship := model.Task{ID: "ship", Title: "Ship", Status: model.StatusInProgress, EndDate: date(2024, time.January, 10)}
	finished := model.Task{ID: "fin", Title: "Finish", Status: model.StatusInProgress, EndDate: date(2024, time.January, 10), ManualProgress: ptr(100)}
	_, err := s.Sync(ctx, []model.Task{ship, finished})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Table.Len(), "a task at 100% is not tracked")

	now = time.Date(2024, time.January, 10, 10, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	report, err := s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Flagged)
	assert.Equal(t, "‣ Ship", fake.event(s.Index.Get("ship")).Summary)
	assert.Equal(t, 1, s.Table.Len())

	now = time.Date(2024, time.January, 12, 9, 0, 0, 0, time.UTC)
	report, err = s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, "! Ship", fake.event(s.Index.Get("ship")).Summary)
	assert.Equal(t, "‣ Finish", fake.event(s.Index.Get("fin")).Summary)
}

func TestSyncDoesNotFlagTasksAtFullProgress(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC)
	s, fake := newSyncer(t, now)

	task := reportTask()
	task.ManualProgress = ptr(60)
	_, err := s.Sync(ctx, []model.Task{task})
	require.NoError(t, err)
	require.Equal(t, 1, s.Table.Len())

	now = time.Date(2024, time.January, 12, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	task.ManualProgress = ptr(100)
	report, err := s.Sync(ctx, []model.Task{task})
	require.NoError(t, err)
	assert.Zero(t, report.Flagged)
	assert.Equal(t, "‣ Write report", fake.event(s.Index.Get("t1")).Summary)
	assert.Zero(t, s.Table.Len())
}

func ptr(v float64) *float64 { return &v }
