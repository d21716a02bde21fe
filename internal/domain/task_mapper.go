package domain

import (
	"errors"
	"fmt"
	"time"
)

// TimestampLayout matches JavaScript's Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// FormatTimestamp renders t in the transport format (UTC, millisecond precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 transport timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidTimestamp, s, err)
	}
	return t.UTC(), nil
}

// ParseOptionalTimestamp maps "" to nil.
func ParseOptionalTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ToClientTask converts a stored task into its transport shape.
func ToClientTask(t *Task) ClientTask {
	desc := t.Description
	ct := ClientTask{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: &desc,
		Estimate:    clonePtr(t.Estimate),
		DueDate:     clonePtr(t.DueDate),
		Date:        clonePtr(t.Date),
		Time:        clonePtr(t.Time),
		Priority:    clonePtr(t.Priority),
		Repeatable:  clonePtr(t.Repeatable),
		UpdatedAt:   formatPtr(t.UpdatedAt),
		DeletedAt:   formatPtr(t.DeletedAt),
	}
	ct.Tags = cloneStrings(t.Tags)
	if t.Checklist != nil {
		ct.Checklist = append([]byte(nil), t.Checklist...)
	}
	if !t.CreatedAt.IsZero() {
		ct.CreatedAt = formatPtr(&t.CreatedAt)
	}
	return ct
}

// ToClientTasks converts a slice; the result is never nil.
func ToClientTasks(tasks []*Task) []ClientTask {
	out := make([]ClientTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToClientTask(t))
	}
	return out
}

// ToStoreTask converts a transport task into the persisted shape.
// UpdatedAt is always cleared because the store assigns it on write,
// and a missing description becomes "". UserID is carried as sent; the
// merge path overwrites it with the caller's id.
func ToStoreTask(ct ClientTask) (*Task, error) {
	t := &Task{
		ID:         ct.ID,
		UserID:     ct.UserID,
		Title:      ct.Title,
		Estimate:   clonePtr(ct.Estimate),
		DueDate:    clonePtr(ct.DueDate),
		Date:       clonePtr(ct.Date),
		Time:       clonePtr(ct.Time),
		Priority:   clonePtr(ct.Priority),
		Repeatable: clonePtr(ct.Repeatable),
	}
	if ct.Description != nil {
		t.Description = *ct.Description
	}
	t.Tags = cloneStrings(ct.Tags)
	if len(ct.Checklist) > 0 && string(ct.Checklist) != "null" {
		t.Checklist = append([]byte(nil), ct.Checklist...)
	}
	if ct.CreatedAt != nil {
		created, err := ParseTimestamp(*ct.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("task %s createdAt: %w", ct.ID, err)
		}
		t.CreatedAt = created
	}
	if ct.DeletedAt != nil {
		deleted, err := ParseTimestamp(*ct.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("task %s deletedAt: %w", ct.ID, err)
		}
		t.DeletedAt = &deleted
	}
	return t, nil
}

// ToStoreTasks converts a slice, failing on the first bad task.
func ToStoreTasks(cts []ClientTask) ([]*Task, error) {
	out := make([]*Task, 0, len(cts))
	for _, ct := range cts {
		t, err := ToStoreTask(ct)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func formatPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTimestamp(*t)
	return &s
}
