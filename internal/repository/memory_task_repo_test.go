package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/service"
)

func fixedClock(t time.Time) (service.Clock, func(time.Duration)) {
	now := t
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestMemoryCreateManyStampsAndClamps(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock, _ := fixedClock(base)
	repo := NewMemoryTaskRepository(clock)
	ctx := context.Background()

	past := base.Add(-time.Hour)
	future := base.Add(time.Hour)
	n, err := repo.CreateMany(ctx, 1, []*domain.Task{
		{ID: "past", Title: "p", CreatedAt: past},
		{ID: "future", Title: "f", CreatedAt: future},
		{ID: "none", Title: "n"},
	})
	if err != nil || n != 3 {
		t.Fatalf("create: n=%d err=%v", n, err)
	}

	want := map[string]time.Time{"past": past, "future": base, "none": base}
	for id, created := range want {
		got, err := repo.FindByID(ctx, 1, id)
		if err != nil {
			t.Fatalf("find %s: %v", id, err)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("%s: createdAt %v, want %v", id, got.CreatedAt, created)
		}
		if got.UpdatedAt == nil || !got.UpdatedAt.Equal(base) {
			t.Errorf("%s: updatedAt %v, want %v", id, got.UpdatedAt, base)
		}
	}
}

func TestMemoryLatestTouchedOrdering(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock, advance := fixedClock(base)
	repo := NewMemoryTaskRepository(clock)
	ctx := context.Background()

	if top, err := repo.LatestTouched(ctx, 1); err != nil || top != nil {
		t.Fatalf("expected nil for empty user, got %v %v", top, err)
	}

	older := base.Add(-time.Hour)
	if _, err := repo.CreateMany(ctx, 1, []*domain.Task{
		{ID: "old", Title: "o", CreatedAt: older},
		{ID: "new", Title: "n"},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Touching the older task later does not beat the newer createdAt.
	advance(time.Minute)
	if err := repo.Update(ctx, 1, &domain.Task{ID: "old", Title: "o2"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	top, err := repo.LatestTouched(ctx, 1)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if top.ID != "new" {
		t.Fatalf("expected newest created task on top, got %s", top.ID)
	}
}

func TestMemoryInUserTxRollsBack(t *testing.T) {
	repo := NewMemoryTaskRepository(nil)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.InUserTx(ctx, 1, func(tx service.TaskStore) error {
		if _, err := tx.CreateMany(ctx, 1, []*domain.Task{{ID: "a", Title: "a"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := repo.FindByID(ctx, 1, "a"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
	changes, _ := repo.ListChanges(ctx, 1, 0, 0)
	if len(changes) != 0 {
		t.Fatalf("expected change log rollback, got %d entries", len(changes))
	}

	// the id is free again for another user
	if n, err := repo.CreateMany(ctx, 2, []*domain.Task{{ID: "a", Title: "a"}}); err != nil || n != 1 {
		t.Fatalf("create after rollback: n=%d err=%v", n, err)
	}
}

func TestMemoryForeignIDIsSkipped(t *testing.T) {
	repo := NewMemoryTaskRepository(nil)
	ctx := context.Background()

	if _, err := repo.CreateMany(ctx, 1, []*domain.Task{{ID: "x", Title: "owner"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := repo.CreateMany(ctx, 2, []*domain.Task{{ID: "x", Title: "intruder"}})
	if err != nil || n != 0 {
		t.Fatalf("expected skip, got n=%d err=%v", n, err)
	}
	if err := repo.Update(ctx, 2, &domain.Task{ID: "x", Title: "intruder"}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if n, _ := repo.SoftDeleteMany(ctx, 2, []string{"x"}); n != 0 {
		t.Fatalf("foreign delete tombstoned %d tasks", n)
	}

	got, _ := repo.FindByID(ctx, 1, "x")
	if got.Title != "owner" || !got.Active() {
		t.Fatalf("owner's task changed: %+v", got)
	}
}

func TestMemoryFindManyFilters(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock, advance := fixedClock(base)
	repo := NewMemoryTaskRepository(clock)
	ctx := context.Background()

	if _, err := repo.CreateMany(ctx, 1, []*domain.Task{{ID: "b", Title: "b"}, {ID: "a", Title: "a"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	advance(time.Second)
	if _, err := repo.SoftDeleteMany(ctx, 1, []string{"b"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	all, _ := repo.FindMany(ctx, 1, domain.TaskFilter{})
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("expected id order within equal createdAt, got %v", all)
	}

	active, _ := repo.FindMany(ctx, 1, domain.TaskFilter{ActiveOnly: true})
	if len(active) != 1 || active[0].ID != "a" {
		t.Fatalf("unexpected active set %v", active)
	}

	deleted, _ := repo.FindMany(ctx, 1, domain.TaskFilter{DeletedAfter: &base})
	if len(deleted) != 1 || deleted[0].ID != "b" {
		t.Fatalf("unexpected deleted set %v", deleted)
	}
}

func TestMemoryClampsDeletedAt(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock, advance := fixedClock(base)
	repo := NewMemoryTaskRepository(clock)
	ctx := context.Background()

	future := base.Add(24 * time.Hour)
	precise := base.Add(-time.Second + 123456*time.Nanosecond)
	if _, err := repo.CreateMany(ctx, 1, []*domain.Task{
		{ID: "future", Title: "f", DeletedAt: &future},
		{ID: "precise", Title: "p", DeletedAt: &precise},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := repo.FindByID(ctx, 1, "future")
	if !got.DeletedAt.Equal(base) {
		t.Fatalf("future deletedAt not clamped: %v", got.DeletedAt)
	}
	got, _ = repo.FindByID(ctx, 1, "precise")
	if want := base.Add(-time.Second); !got.DeletedAt.Equal(want) {
		t.Fatalf("deletedAt not truncated to ms: %v", got.DeletedAt)
	}

	advance(time.Minute)
	if _, err := repo.CreateMany(ctx, 1, []*domain.Task{{ID: "precise", Title: "p2", DeletedAt: &future}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = repo.FindByID(ctx, 1, "precise")
	if !got.DeletedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("overwrite kept a future deletedAt: %v", got.DeletedAt)
	}
}

func TestMemoryCreateDeletedLogsBoth(t *testing.T) {
	repo := NewMemoryTaskRepository(nil)
	ctx := context.Background()
	deleted := time.Now().Add(-time.Hour)

	if _, err := repo.CreateMany(ctx, 1, []*domain.Task{{ID: "gone", Title: "g", DeletedAt: &deleted}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	changes, _ := repo.ListChanges(ctx, 1, 0, 0)
	if len(changes) != 2 || changes[0].Operation != domain.ChangeCreate || changes[1].Operation != domain.ChangeDelete {
		t.Fatalf("expected create then delete, got %+v", changes)
	}
}
