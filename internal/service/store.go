package service

import (
	"context"
	"time"

	"tasksync/internal/domain"
)

// TaskStore is the persistence boundary of the sync core. Every call is
// scoped to one user; implementations live in the repository package.
type TaskStore interface {
	// InUserTx runs fn with exclusive write access to userID's tasks.
	// The store passed to fn shares the transaction; nested calls reuse it.
	InUserTx(ctx context.Context, userID int64, fn func(TaskStore) error) error

	FindByID(ctx context.Context, userID int64, id string) (*domain.Task, error)
	// ExistingIDs returns the subset of ids already stored for userID.
	ExistingIDs(ctx context.Context, userID int64, ids []string) ([]string, error)
	FindMany(ctx context.Context, userID int64, f domain.TaskFilter) ([]*domain.Task, error)
	// LatestTouched returns the top task ordered by created, updated and
	// deleted time descending, or nil when the user has no tasks.
	LatestTouched(ctx context.Context, userID int64) (*domain.Task, error)

	// CreateMany inserts tasks for userID; an id that already exists is
	// overwritten in the same statement.
	CreateMany(ctx context.Context, userID int64, tasks []*domain.Task) (int64, error)
	Update(ctx context.Context, userID int64, t *domain.Task) error
	SoftDeleteMany(ctx context.Context, userID int64, ids []string) (int64, error)

	ListChanges(ctx context.Context, userID int64, afterSeq int64, limit int) ([]*domain.TaskChange, error)
	Ping(ctx context.Context) error
}

// Clock returns the current time. Stores truncate it to milliseconds.
type Clock func() time.Time
