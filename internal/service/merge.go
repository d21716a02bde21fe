package service

import (
	"context"
	"fmt"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
)

// MergeApplier writes client-originated changes into the store.
// Creates and updates are mutually upserting: a create for a known id
// overwrites it and an update for an unknown id inserts it. The incoming
// record always wins; there is no timestamp comparison.
type MergeApplier struct {
	store TaskStore
}

func NewMergeApplier(store TaskStore) *MergeApplier {
	return &MergeApplier{store: store}
}

// ApplyCreates inserts new tasks and routes ids that already exist to the
// update path. Existence is checked once for the whole batch.
func (m *MergeApplier) ApplyCreates(ctx context.Context, userID int64, tasks []domain.ClientTask) error {
	batch, err := prepareBatch(tasks)
	if err != nil || len(batch) == 0 {
		return err
	}

	known, err := m.existing(ctx, userID, batch)
	if err != nil {
		return err
	}

	var fresh, present []*domain.Task
	for _, t := range batch {
		if known[t.ID] {
			present = append(present, t)
		} else {
			fresh = append(fresh, t)
		}
	}

	logger.WithContext(ctx).Debug("apply creates", "user_id", userID, "new", len(fresh), "existing", len(present))

	if err := m.overwrite(ctx, userID, present); err != nil {
		return err
	}
	return m.insert(ctx, userID, fresh)
}

// ApplyUpdates overwrites existing tasks whole-record and routes unknown ids
// to the create path.
func (m *MergeApplier) ApplyUpdates(ctx context.Context, userID int64, tasks []domain.ClientTask) error {
	batch, err := prepareBatch(tasks)
	if err != nil || len(batch) == 0 {
		return err
	}

	known, err := m.existing(ctx, userID, batch)
	if err != nil {
		return err
	}

	var missing, present []*domain.Task
	for _, t := range batch {
		if known[t.ID] {
			present = append(present, t)
		} else {
			missing = append(missing, t)
		}
	}

	logger.WithContext(ctx).Debug("apply updates", "user_id", userID, "existing", len(present), "missing", len(missing))

	if err := m.insert(ctx, userID, missing); err != nil {
		return err
	}
	return m.overwrite(ctx, userID, present)
}

// ApplyDeletes tombstones every matching task in one write. Unknown ids are
// skipped silently.
func (m *MergeApplier) ApplyDeletes(ctx context.Context, userID int64, ids []string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	n, err := m.store.SoftDeleteMany(ctx, userID, ids)
	if err != nil {
		return wrapStoreErr("soft delete", err, persistenceErr)
	}
	tasksApplied.WithLabelValues(domain.ChangeDelete).Add(float64(n))
	logger.WithContext(ctx).Debug("apply deletes", "user_id", userID, "requested", len(ids), "tombstoned", n)
	return nil
}

func (m *MergeApplier) existing(ctx context.Context, userID int64, batch []*domain.Task) (map[string]bool, error) {
	ids := make([]string, 0, len(batch))
	for _, t := range batch {
		ids = append(ids, t.ID)
	}

	found, err := m.store.ExistingIDs(ctx, userID, ids)
	if err != nil {
		return nil, wrapStoreErr("existence check", err, persistenceErr)
	}

	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	return known, nil
}

func (m *MergeApplier) insert(ctx context.Context, userID int64, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		t.UserID = userID
	}
	n, err := m.store.CreateMany(ctx, userID, tasks)
	if err != nil {
		return wrapStoreErr("create tasks", err, persistenceErr)
	}
	tasksApplied.WithLabelValues(domain.ChangeCreate).Add(float64(n))
	return nil
}

func (m *MergeApplier) overwrite(ctx context.Context, userID int64, tasks []*domain.Task) error {
	for _, t := range tasks {
		t.UserID = userID
		if err := m.store.Update(ctx, userID, t); err != nil {
			return wrapStoreErr("update task "+t.ID, err, persistenceErr)
		}
		tasksApplied.WithLabelValues(domain.ChangeUpdate).Inc()
	}
	return nil
}

// prepareBatch converts to the store shape and collapses repeated ids,
// keeping the last payload at the position of its last occurrence.
func prepareBatch(tasks []domain.ClientTask) ([]*domain.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	converted, err := domain.ToStoreTasks(tasks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}

	last := make(map[string]int, len(converted))
	for i, t := range converted {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: missing id", ErrInvalidTask)
		}
		last[t.ID] = i
	}

	out := make([]*domain.Task, 0, len(last))
	for i, t := range converted {
		if last[t.ID] == i {
			out = append(out, t)
		}
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
