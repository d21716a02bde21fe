package service

import (
	"context"
	"errors"
	"fmt"

	"tasksync/internal/domain"
)

const (
	defaultChangesLimit = 100
	maxChangesLimit     = 1000
)

// TaskService serves direct task reads and writes outside a full sync.
// Writes go through the same MergeApplier and per-user lock as Reconcile.
type TaskService struct {
	store    TaskStore
	identity IdentityProvider
}

func NewTaskService(store TaskStore, identity IdentityProvider) *TaskService {
	return &TaskService{store: store, identity: identity}
}

// List returns the caller's active tasks.
func (s *TaskService) List(ctx context.Context) ([]domain.ClientTask, error) {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	tasks, err := s.store.FindMany(ctx, user.ID, domain.TaskFilter{ActiveOnly: true})
	if err != nil {
		return nil, unavailableErr("list tasks", err)
	}
	return domain.ToClientTasks(tasks), nil
}

// Get returns one active task. Tombstoned tasks are reported as not found.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.ClientTask, error) {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	t, err := s.store.FindByID(ctx, user.ID, id)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, unavailableErr("get task", err)
	}
	if !t.Active() {
		return nil, domain.ErrTaskNotFound
	}
	ct := domain.ToClientTask(t)
	return &ct, nil
}

// Upsert creates the task or overwrites the existing one with the same id.
func (s *TaskService) Upsert(ctx context.Context, task domain.ClientTask) (*domain.ClientTask, error) {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if task.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidTask)
	}

	var saved *domain.Task
	err := s.store.InUserTx(ctx, user.ID, func(tx TaskStore) error {
		if err := NewMergeApplier(tx).ApplyCreates(ctx, user.ID, []domain.ClientTask{task}); err != nil {
			return err
		}
		t, err := tx.FindByID(ctx, user.ID, task.ID)
		if err != nil {
			return persistenceErr("reload task", err)
		}
		saved = t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTask) {
			return nil, err
		}
		return nil, wrapStoreErr("upsert task", err, persistenceErr)
	}
	ct := domain.ToClientTask(saved)
	return &ct, nil
}

// Delete tombstones the given ids.
func (s *TaskService) Delete(ctx context.Context, ids []string) error {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	err := s.store.InUserTx(ctx, user.ID, func(tx TaskStore) error {
		return NewMergeApplier(tx).ApplyDeletes(ctx, user.ID, ids)
	})
	if err != nil {
		return wrapStoreErr("delete tasks", err, persistenceErr)
	}
	return nil
}

// Changes pages through the caller's mutation log after afterSeq.
func (s *TaskService) Changes(ctx context.Context, afterSeq int64, limit int) ([]*domain.TaskChange, error) {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = defaultChangesLimit
	}
	if limit > maxChangesLimit {
		limit = maxChangesLimit
	}
	changes, err := s.store.ListChanges(ctx, user.ID, afterSeq, limit)
	if err != nil {
		return nil, unavailableErr("list changes", err)
	}
	if changes == nil {
		changes = []*domain.TaskChange{}
	}
	return changes, nil
}
