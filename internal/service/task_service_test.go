package service_test

import (
	"errors"
	"testing"

	"tasksync/internal/domain"
	"tasksync/internal/service"
)

func TestTaskServiceUpsertAndGet(t *testing.T) {
	_, tasks, _, _ := newSync(t)
	ctx := userCtx(7)
	prio := domain.PriorityUrgent

	saved, err := tasks.Upsert(ctx, domain.ClientTask{ID: "x", Title: "first", Priority: &prio})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.UpdatedAt == nil || saved.CreatedAt == nil {
		t.Fatalf("expected server timestamps, got %+v", saved)
	}

	again, err := tasks.Upsert(ctx, domain.ClientTask{ID: "x", Title: "second"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.Priority != nil {
		t.Fatalf("whole-record overwrite should clear priority, got %v", *again.Priority)
	}
	if *again.CreatedAt != *saved.CreatedAt {
		t.Fatalf("createdAt changed on overwrite: %s -> %s", *saved.CreatedAt, *again.CreatedAt)
	}

	got, err := tasks.Get(ctx, "x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "second" {
		t.Fatalf("got %q", got.Title)
	}

	if _, err := tasks.Get(ctx, "missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskServiceUpsertRequiresID(t *testing.T) {
	_, tasks, _, _ := newSync(t)

	if _, err := tasks.Upsert(userCtx(1), domain.ClientTask{Title: "no id"}); !errors.Is(err, service.ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
}

func TestTaskServiceDeleteIgnoresUnknownIDs(t *testing.T) {
	_, tasks, _, _ := newSync(t)
	ctx := userCtx(1)

	if _, err := tasks.Upsert(ctx, domain.ClientTask{ID: "a", Title: "a"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tasks.Delete(ctx, []string{"a", "ghost", "a"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := tasks.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no active tasks, got %+v", list)
	}
}

func TestTaskServiceChangesPaging(t *testing.T) {
	_, tasks, _, _ := newSync(t)
	ctx := userCtx(1)

	if _, err := tasks.Upsert(ctx, domain.ClientTask{ID: "a", Title: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tasks.Upsert(ctx, domain.ClientTask{ID: "a", Title: "b"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tasks.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	all, err := tasks.Changes(ctx, 0, 0)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	wantOps := []string{domain.ChangeCreate, domain.ChangeUpdate, domain.ChangeDelete}
	if len(all) != len(wantOps) {
		t.Fatalf("expected %d changes, got %d", len(wantOps), len(all))
	}
	for i, op := range wantOps {
		if all[i].Operation != op || all[i].TaskID != "a" {
			t.Fatalf("change %d: got %+v, want %s", i, all[i], op)
		}
	}

	page, err := tasks.Changes(ctx, all[0].Seq, 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 || page[0].Seq != all[1].Seq {
		t.Fatalf("unexpected page %+v", page)
	}

	tail, err := tasks.Changes(ctx, all[2].Seq, 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if tail == nil || len(tail) != 0 {
		t.Fatalf("expected an empty non-nil page, got %#v", tail)
	}
}

func TestTaskServiceRequiresIdentity(t *testing.T) {
	_, tasks, _, _ := newSync(t)

	if _, err := tasks.List(t.Context()); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Fatalf("list: expected ErrNotAuthenticated, got %v", err)
	}
	if err := tasks.Delete(t.Context(), []string{"a"}); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Fatalf("delete: expected ErrNotAuthenticated, got %v", err)
	}
}
