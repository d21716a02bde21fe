package service

import (
	"context"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
)

// DiffComputer partitions a user's tasks into what changed after a cutoff.
type DiffComputer struct {
	store TaskStore
}

func NewDiffComputer(store TaskStore) *DiffComputer {
	return &DiffComputer{store: store}
}

// DiffSince returns the changes after cutoff (exclusive). A nil cutoff yields
// every active task in Create, which is how a fresh client bootstraps.
//
// A task created and then updated after cutoff appears in both Create and
// Update; receivers apply Create as an upsert so the overlap is harmless.
func (d *DiffComputer) DiffSince(ctx context.Context, userID int64, cutoff *time.Time) (*domain.TaskDiff, error) {
	diff := domain.NewTaskDiff()

	if cutoff == nil {
		all, err := d.store.FindMany(ctx, userID, domain.TaskFilter{ActiveOnly: true})
		if err != nil {
			return nil, wrapStoreErr("diff snapshot", err, unavailableErr)
		}
		diff.Create = domain.ToClientTasks(all)
		return diff, nil
	}

	created, err := d.store.FindMany(ctx, userID, domain.TaskFilter{ActiveOnly: true, CreatedAfter: cutoff})
	if err != nil {
		return nil, wrapStoreErr("diff created", err, unavailableErr)
	}
	updated, err := d.store.FindMany(ctx, userID, domain.TaskFilter{ActiveOnly: true, UpdatedAfter: cutoff})
	if err != nil {
		return nil, wrapStoreErr("diff updated", err, unavailableErr)
	}
	deleted, err := d.store.FindMany(ctx, userID, domain.TaskFilter{DeletedAfter: cutoff})
	if err != nil {
		return nil, wrapStoreErr("diff deleted", err, unavailableErr)
	}

	diff.Create = domain.ToClientTasks(created)
	diff.Update = domain.ToClientTasks(updated)
	for _, t := range deleted {
		diff.Delete = append(diff.Delete, t.ID)
	}

	logger.WithContext(ctx).Debug("server diff computed",
		"user_id", userID,
		"cutoff", domain.FormatTimestamp(*cutoff),
		"created", len(diff.Create),
		"updated", len(diff.Update),
		"deleted", len(diff.Delete),
	)
	return diff, nil
}
