package service

import (
	"context"
	"errors"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
)

// SyncResult is what a client receives after reconciling.
// LastServerUpdate is nil when the user has no tasks.
type SyncResult struct {
	Diff             *domain.TaskDiff
	LastServerUpdate *time.Time
}

// SyncService is the entry point of the reconciliation protocol.
type SyncService struct {
	store    TaskStore
	identity IdentityProvider
}

func NewSyncService(store TaskStore, identity IdentityProvider) *SyncService {
	return &SyncService{store: store, identity: identity}
}

// Reconcile applies the client's diff, then returns everything the server
// changed after lastClientUpdate together with the new watermark.
//
// The server diff is computed after the client's writes, so those writes can
// come back in the result; clients re-apply it idempotently. All steps run in
// one per-user transaction, so concurrent syncs of the same user serialize.
func (s *SyncService) Reconcile(ctx context.Context, clientDiff *domain.TaskDiff, lastClientUpdate *time.Time) (*SyncResult, error) {
	started := time.Now()

	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		syncRequests.WithLabelValues("unauthenticated").Inc()
		return nil, ErrNotAuthenticated
	}
	if clientDiff == nil {
		clientDiff = domain.NewTaskDiff()
	}

	log := logger.WithContext(ctx).With("user_id", user.ID)
	log.Info("sync start",
		"create", len(clientDiff.Create),
		"update", len(clientDiff.Update),
		"delete", len(clientDiff.Delete),
		"last_client_update", formatOptional(lastClientUpdate),
	)

	var result *SyncResult
	err := s.store.InUserTx(ctx, user.ID, func(tx TaskStore) error {
		merge := NewMergeApplier(tx)

		if len(clientDiff.Create) > 0 {
			if err := merge.ApplyCreates(ctx, user.ID, clientDiff.Create); err != nil {
				return err
			}
		}
		if len(clientDiff.Update) > 0 {
			if err := merge.ApplyUpdates(ctx, user.ID, clientDiff.Update); err != nil {
				return err
			}
		}
		if len(clientDiff.Delete) > 0 {
			if err := merge.ApplyDeletes(ctx, user.ID, clientDiff.Delete); err != nil {
				return err
			}
		}

		serverDiff, err := NewDiffComputer(tx).DiffSince(ctx, user.ID, lastClientUpdate)
		if err != nil {
			return err
		}
		watermark, err := NewWatermarkCalculator(tx).LastUpdate(ctx, user.ID)
		if err != nil {
			return err
		}

		result = &SyncResult{Diff: serverDiff, LastServerUpdate: watermark}
		return nil
	})
	syncDuration.Observe(time.Since(started).Seconds())
	if errors.Is(err, ErrInvalidTask) {
		syncRequests.WithLabelValues("rejected").Inc()
		log.Warn("sync rejected", "error", err)
		return nil, err
	}
	if err != nil {
		syncRequests.WithLabelValues("error").Inc()
		log.Error("sync failed", "error", err)
		return nil, wrapStoreErr("reconcile", err, persistenceErr)
	}

	syncRequests.WithLabelValues("ok").Inc()
	tasksReturned.WithLabelValues(domain.ChangeCreate).Add(float64(len(result.Diff.Create)))
	tasksReturned.WithLabelValues(domain.ChangeUpdate).Add(float64(len(result.Diff.Update)))
	tasksReturned.WithLabelValues(domain.ChangeDelete).Add(float64(len(result.Diff.Delete)))

	log.Info("sync done",
		"returned_create", len(result.Diff.Create),
		"returned_update", len(result.Diff.Update),
		"returned_delete", len(result.Diff.Delete),
		"last_server_update", formatOptional(result.LastServerUpdate),
	)
	return result, nil
}

// Diff returns the server changes after since without applying anything.
func (s *SyncService) Diff(ctx context.Context, since *time.Time) (*domain.TaskDiff, error) {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return NewDiffComputer(s.store).DiffSince(ctx, user.ID, since)
}

// LastServerUpdate returns the current watermark of the caller.
func (s *SyncService) LastServerUpdate(ctx context.Context) (*time.Time, error) {
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return NewWatermarkCalculator(s.store).LastUpdate(ctx, user.ID)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return domain.FormatTimestamp(*t)
}
