package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrTaskNotFound = errors.New("task not found")

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type RepeatType string

const (
	RepeatDay   RepeatType = "day"
	RepeatWeek  RepeatType = "week"
	RepeatMonth RepeatType = "month"
	RepeatYear  RepeatType = "year"
)

// Repeatable describes a recurring task: every RepeatEvery units of RepeatType.
type Repeatable struct {
	RepeatEvery int        `json:"repeatEvery"`
	RepeatType  RepeatType `json:"repeatType"`
}

// Task is the persisted shape of a task.
// CreatedAt is zero only before the store assigned it.
type Task struct {
	ID          string          `db:"id"`
	UserID      int64           `db:"user_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Estimate    *float64        `db:"estimate"`
	DueDate     *string         `db:"due_date"`
	Date        *string         `db:"date"`
	Time        *string         `db:"time"`
	Tags        []string        `db:"tags"`
	Priority    *Priority       `db:"priority"`
	Checklist   json.RawMessage `db:"checklist"`
	Repeatable  *Repeatable     `db:"repeatable"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   *time.Time      `db:"updated_at"`
	DeletedAt   *time.Time      `db:"deleted_at"`
}

// Active reports whether the task has not been tombstoned.
func (t *Task) Active() bool {
	return t.DeletedAt == nil
}

// LastTouched returns the latest of CreatedAt, UpdatedAt and DeletedAt.
func (t *Task) LastTouched() time.Time {
	last := t.CreatedAt
	if t.UpdatedAt != nil && t.UpdatedAt.After(last) {
		last = *t.UpdatedAt
	}
	if t.DeletedAt != nil && t.DeletedAt.After(last) {
		last = *t.DeletedAt
	}
	return last
}

// Clone returns a deep copy so stores never share slices with callers.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = cloneStrings(t.Tags)
	if t.Checklist != nil {
		c.Checklist = append(json.RawMessage(nil), t.Checklist...)
	}
	if t.Repeatable != nil {
		r := *t.Repeatable
		c.Repeatable = &r
	}
	c.Estimate = clonePtr(t.Estimate)
	c.DueDate = clonePtr(t.DueDate)
	c.Date = clonePtr(t.Date)
	c.Time = clonePtr(t.Time)
	c.Priority = clonePtr(t.Priority)
	c.UpdatedAt = clonePtr(t.UpdatedAt)
	c.DeletedAt = clonePtr(t.DeletedAt)
	return &c
}

// cloneStrings copies s, keeping nil and empty distinct.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// TaskFilter selects a user's tasks. Time bounds are exclusive.
type TaskFilter struct {
	ActiveOnly   bool
	CreatedAfter *time.Time
	UpdatedAfter *time.Time
	DeletedAfter *time.Time
}

// Match applies the filter to a single task.
func (f TaskFilter) Match(t *Task) bool {
	if f.ActiveOnly && !t.Active() {
		return false
	}
	if f.CreatedAfter != nil && !t.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.UpdatedAfter != nil && (t.UpdatedAt == nil || !t.UpdatedAt.After(*f.UpdatedAfter)) {
		return false
	}
	if f.DeletedAfter != nil && (t.DeletedAt == nil || !t.DeletedAt.After(*f.DeletedAfter)) {
		return false
	}
	return true
}
