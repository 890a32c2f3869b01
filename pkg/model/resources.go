package model

import "encoding/json"

// Comment is a remark left on a task.
type Comment struct {
	ID        string   `json:"id"`
	TaskID    ObjectID `json:"taskId,omitempty"`
	User      UserRef  `json:"user"`
	Text      string   `json:"text"`
	CreatedAt Time     `json:"createdAt"`
}

func (c *Comment) UnmarshalJSON(b []byte) error {
	type alias Comment
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.ID = firstNonEmpty(c.ID, aux.MongoID)
	return nil
}

// Step statuses.
const (
	StepPending    = "pending"
	StepInProgress = "in-progress"
	StepCompleted  = "completed"
)

// Step is an ordered sub-item of a task.
type Step struct {
	ID            string    `json:"id"`
	TaskID        ObjectID  `json:"taskId,omitempty"`
	StepNumber    int       `json:"stepNumber"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	IsActive      bool      `json:"isActive"`
	AssignedUsers []UserRef `json:"assignedUsers,omitempty"`
	StartDate     Time      `json:"startDate"`
	EndDate       Time      `json:"endDate"`
}

func (s *Step) UnmarshalJSON(b []byte) error {
	type alias Step
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.ID = firstNonEmpty(s.ID, aux.MongoID)
	return nil
}

// Activity is an entry of a task's audit trail.
type Activity struct {
	ID          string   `json:"id"`
	TaskID      ObjectID `json:"taskId,omitempty"`
	User        UserRef  `json:"user"`
	Action      string   `json:"action"`
	Description string   `json:"description"`
	CreatedAt   Time     `json:"createdAt"`
}

func (a *Activity) UnmarshalJSON(b []byte) error {
	type alias Activity
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.ID = firstNonEmpty(a.ID, aux.MongoID)
	return nil
}

// TaskUpdate is a dated progress note posted by an assignee.
type TaskUpdate struct {
	ID         string   `json:"id"`
	TaskID     ObjectID `json:"taskId,omitempty"`
	User       UserRef  `json:"user"`
	UpdateText string   `json:"updateText"`
	UpdateDate Time     `json:"updateDate"`
	CreatedAt  Time     `json:"createdAt"`
}

func (u *TaskUpdate) UnmarshalJSON(b []byte) error {
	type alias TaskUpdate
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.ID = firstNonEmpty(u.ID, aux.MongoID)
	return nil
}

// Notification is a message addressed to the signed-in user.
type Notification struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	TaskID    ObjectID `json:"taskId,omitempty"`
	IsRead    bool     `json:"isRead"`
	ReadAt    Time     `json:"readAt"`
	CreatedAt Time     `json:"createdAt"`
}

func (n *Notification) UnmarshalJSON(b []byte) error {
	type alias Notification
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	n.ID = firstNonEmpty(n.ID, aux.MongoID)
	return nil
}
