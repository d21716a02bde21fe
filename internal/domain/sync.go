package domain

import (
	"encoding/json"
	"time"
)

// ClientTask is the transport shape exchanged with clients.
// Optional fields are omitted from JSON when absent; timestamps are ISO-8601.
type ClientTask struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"userId,omitempty"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Estimate    *float64        `json:"estimate,omitempty"`
	DueDate     *string         `json:"dueDate,omitempty"`
	Date        *string         `json:"date,omitempty"`
	Time        *string         `json:"time,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Priority    *Priority       `json:"priority,omitempty"`
	Checklist   json.RawMessage `json:"checklist,omitempty"`
	Repeatable  *Repeatable     `json:"repeatable,omitempty"`
	CreatedAt   *string         `json:"createdAt,omitempty"`
	UpdatedAt   *string         `json:"updatedAt,omitempty"`
	DeletedAt   *string         `json:"deletedAt,omitempty"`
}

// TaskDiff is the unit of change exchanged in both directions.
type TaskDiff struct {
	Create []ClientTask `json:"create"`
	Update []ClientTask `json:"update"`
	Delete []string     `json:"delete"`
}

// NewTaskDiff returns a diff whose buckets encode as [] rather than null.
func NewTaskDiff() *TaskDiff {
	return &TaskDiff{
		Create: []ClientTask{},
		Update: []ClientTask{},
		Delete: []string{},
	}
}

// Empty reports whether the diff carries no changes.
func (d *TaskDiff) Empty() bool {
	return d == nil || len(d.Create) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// TaskChange is one entry of a user's mutation log.
type TaskChange struct {
	Seq       int64     `db:"seq" json:"seq"`
	UserID    int64     `db:"user_id" json:"-"`
	TaskID    string    `db:"task_id" json:"taskId"`
	Operation string    `db:"operation" json:"operation"`
	ChangedAt time.Time `db:"changed_at" json:"changedAt"`
}

// MarshalJSON renders ChangedAt in the transport timestamp format.
func (c TaskChange) MarshalJSON() ([]byte, error) {
	type plain TaskChange
	return json.Marshal(struct {
		plain
		ChangedAt string `json:"changedAt"`
	}{plain(c), FormatTimestamp(c.ChangedAt)})
}

// Change log operations
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)
