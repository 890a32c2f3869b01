// Package model holds the records exchanged with the task backend.
package model

import "encoding/json"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted}
}

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// Priority represents how urgent a task is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriorities returns all valid priority values, lowest first.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// IsValid returns true if the priority is a known valid value.
func (p Priority) IsValid() bool {
	for _, valid := range ValidPriorities() {
		if p == valid {
			return true
		}
	}
	return false
}

// Weight returns the sort weight of the priority. Unknown priorities weigh 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Task is a unit of work tracked by the backend.
type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         Status    `json:"status"`
	Priority       Priority  `json:"priority"`
	StartDate      Time      `json:"startDate"`
	EndDate        Time      `json:"endDate"`
	CreatedBy      UserRef   `json:"createdBy"`
	AssignedUsers  []UserRef `json:"assignedUsers"`
	ManualProgress *float64  `json:"manualProgress"`
	CreatedAt      Time      `json:"createdAt"`
	Comments       []Comment `json:"comments,omitempty"`
	StopLogs       []StopLog `json:"stopLogs,omitempty"`
}

// UnmarshalJSON accepts both `id` and the backend's `_id`.
func (t *Task) UnmarshalJSON(b []byte) error {
	type alias Task
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.ID = firstNonEmpty(t.ID, aux.MongoID)
	return nil
}

// IsAssigned reports whether userID is among the task's assignees.
func (t Task) IsAssigned(userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range t.AssignedUsers {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// IsStopped reports whether the latest stop log has not been resumed yet.
func (t Task) IsStopped() bool {
	if t.Status == StatusPaused {
		return true
	}
	if len(t.StopLogs) == 0 {
		return false
	}
	return t.StopLogs[len(t.StopLogs)-1].ResumedAt.IsZero()
}

// StopLog records a pause in work on a task.
type StopLog struct {
	Reason    string  `json:"reason"`
	StoppedBy UserRef `json:"stoppedBy"`
	StoppedAt Time    `json:"stoppedAt"`
	ResumedAt Time    `json:"resumedAt"`
}
