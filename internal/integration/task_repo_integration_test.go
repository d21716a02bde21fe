package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/repository"
	"tasksync/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(migDir, name))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
}

func setup(t *testing.T) (*pgxpool.Pool, *domain.User) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	applyMigrations(t, db)

	u := &domain.User{Email: uuid.NewString() + "@example.com", Name: "integration"}
	if err := repository.NewUserRepository(db).Upsert(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return db, u
}

func asUser(u *domain.User) context.Context {
	return service.WithClaims(context.Background(), &service.Claims{UserID: u.ID, Email: u.Email})
}

func TestTaskRepository_SyncRoundTrip(t *testing.T) {
	db, u := setup(t)
	users := repository.NewUserRepository(db)
	syncer := service.NewSyncService(repository.NewTaskRepository(db), service.NewTokenIdentity(users))
	ctx := asUser(u)

	prio := domain.PriorityHigh
	a, b := uuid.NewString(), uuid.NewString()
	diff := domain.NewTaskDiff()
	diff.Create = []domain.ClientTask{
		{ID: a, Title: "a", Priority: &prio, Tags: []string{"x"}, Repeatable: &domain.Repeatable{RepeatEvery: 1, RepeatType: domain.RepeatDay}},
		{ID: b, Title: "b"},
	}

	first, err := syncer.Reconcile(ctx, diff, nil)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if len(first.Diff.Create) != 2 || first.LastServerUpdate == nil {
		t.Fatalf("unexpected first result %+v", first)
	}

	// keep the tombstone off the watermark millisecond
	time.Sleep(5 * time.Millisecond)

	diff = domain.NewTaskDiff()
	diff.Update = []domain.ClientTask{{ID: a, Title: "a2", Priority: &prio}}
	diff.Delete = []string{b}
	second, err := syncer.Reconcile(ctx, diff, first.LastServerUpdate)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if len(second.Diff.Update) != 1 || second.Diff.Update[0].Title != "a2" {
		t.Fatalf("expected a2 in update, got %+v", second.Diff.Update)
	}
	if second.Diff.Update[0].Tags != nil || second.Diff.Update[0].Repeatable != nil {
		t.Fatalf("whole-record update kept stale fields: %+v", second.Diff.Update[0])
	}
	if len(second.Diff.Delete) != 1 || second.Diff.Delete[0] != b {
		t.Fatalf("expected %s in delete, got %v", b, second.Diff.Delete)
	}
	if second.LastServerUpdate.Before(*first.LastServerUpdate) {
		t.Fatalf("watermark went backwards")
	}
}

func TestTaskRepository_ForeignIDAndChanges(t *testing.T) {
	db, owner := setup(t)
	_, other := setup(t)
	repo := repository.NewTaskRepository(db)
	id := uuid.NewString()

	if _, err := repo.CreateMany(context.Background(), owner.ID, []*domain.Task{{ID: id, Title: "owner"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := repo.CreateMany(context.Background(), other.ID, []*domain.Task{{ID: id, Title: "intruder"}})
	if err != nil || n != 0 {
		t.Fatalf("expected foreign id to be skipped, got n=%d err=%v", n, err)
	}

	got, err := repo.FindByID(context.Background(), owner.ID, id)
	if err != nil || got.Title != "owner" {
		t.Fatalf("owner task changed: %+v %v", got, err)
	}
	if _, err := repo.FindByID(context.Background(), other.ID, id); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	changes, err := repo.ListChanges(context.Background(), owner.ID, 0, 10)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(changes) != 1 || changes[0].Operation != domain.ChangeCreate || changes[0].TaskID != id {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestTaskRepository_ConcurrentSyncsSerialize(t *testing.T) {
	db, u := setup(t)
	syncer := service.NewSyncService(repository.NewTaskRepository(db), service.NewTokenIdentity(nil))
	ctx := asUser(u)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			diff := domain.NewTaskDiff()
			diff.Create = []domain.ClientTask{{ID: fmt.Sprintf("%s-%d", u.Email, i), Title: "c"}}
			if _, err := syncer.Reconcile(ctx, diff, nil); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("sync: %v", err)
	}

	tasks, err := service.NewTaskService(repository.NewTaskRepository(db), service.NewTokenIdentity(nil)).List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != n {
		t.Fatalf("expected %d tasks, got %d", n, len(tasks))
	}
}

func TestTaskRepository_ClientDeletedAt(t *testing.T) {
	db, u := setup(t)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()
	future := time.Now().Add(24 * 365 * time.Hour)
	id := uuid.NewString()

	if _, err := repo.CreateMany(ctx, u.ID, []*domain.Task{{ID: id, Title: "skewed", DeletedAt: &future}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByID(ctx, u.ID, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.DeletedAt == nil || got.DeletedAt.After(time.Now()) {
		t.Fatalf("future deletedAt stored as sent: %v", got.DeletedAt)
	}

	changes, err := repo.ListChanges(ctx, u.ID, 0, 10)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(changes) != 2 || changes[0].Operation != domain.ChangeCreate || changes[1].Operation != domain.ChangeDelete {
		t.Fatalf("expected create then delete, got %+v", changes)
	}
}
