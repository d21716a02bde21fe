package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
	"tasksync/internal/service"
)

// MemoryTaskRepository is an in-process task store with the same semantics
// as TaskRepository. It backs STORE_DRIVER=memory and the unit tests.
type MemoryTaskRepository struct {
	mu      sync.RWMutex
	tasks   map[int64]map[string]*domain.Task
	owners  map[string]int64
	changes map[int64][]*domain.TaskChange
	seq     int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	now service.Clock
}

func NewMemoryTaskRepository(clock service.Clock) *MemoryTaskRepository {
	if clock == nil {
		clock = storeClock
	}
	return &MemoryTaskRepository{
		tasks:   make(map[int64]map[string]*domain.Task),
		owners:  make(map[string]int64),
		changes: make(map[int64][]*domain.TaskChange),
		locks:   make(map[int64]*sync.Mutex),
		now:     clock,
	}
}

// memoryTx is the view handed to InUserTx callbacks; nested calls reuse it.
type memoryTx struct {
	*MemoryTaskRepository
}

func (tx memoryTx) InUserTx(ctx context.Context, userID int64, fn func(service.TaskStore) error) error {
	return fn(tx)
}

// InUserTx serializes callers per user and restores the user's tasks and
// change log when fn fails.
func (r *MemoryTaskRepository) InUserTx(ctx context.Context, userID int64, fn func(service.TaskStore) error) error {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot, changeCount := r.snapshot(userID)
	if err := fn(memoryTx{r}); err != nil {
		r.restore(userID, snapshot, changeCount)
		return err
	}
	return nil
}

func (r *MemoryTaskRepository) FindByID(ctx context.Context, userID int64, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[userID][id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryTaskRepository) ExistingIDs(ctx context.Context, userID int64, ids []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []string
	for _, id := range ids {
		if _, ok := r.tasks[userID][id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (r *MemoryTaskRepository) FindMany(ctx context.Context, userID int64, f domain.TaskFilter) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []*domain.Task
	for _, t := range r.tasks[userID] {
		if f.Match(t) {
			res = append(res, t.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (r *MemoryTaskRepository) LatestTouched(ctx context.Context, userID int64) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var top *domain.Task
	for _, t := range r.tasks[userID] {
		if top == nil || touchedBefore(top, t) {
			top = t
		}
	}
	if top == nil {
		return nil, nil
	}
	return top.Clone(), nil
}

func (r *MemoryTaskRepository) CreateMany(ctx context.Context, userID int64, tasks []*domain.Task) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for _, in := range tasks {
		if owner, ok := r.owners[in.ID]; ok && owner != userID {
			logger.WithContext(ctx).Warn("task id owned by another user, skipped", "task_id", in.ID, "user_id", userID)
			continue
		}

		if existing, ok := r.tasks[userID][in.ID]; ok {
			r.overwrite(existing, in, now, false)
			r.appendChange(userID, in.ID, domain.ChangeUpdate, now)
			n++
			continue
		}

		t := in.Clone()
		t.UserID = userID
		t.CreatedAt = clampCreated(in.CreatedAt, now)
		t.DeletedAt = clampDeleted(in.DeletedAt, now)
		t.UpdatedAt = &now
		if r.tasks[userID] == nil {
			r.tasks[userID] = make(map[string]*domain.Task)
		}
		r.tasks[userID][t.ID] = t
		r.owners[t.ID] = userID
		r.appendChange(userID, t.ID, domain.ChangeCreate, now)
		if t.DeletedAt != nil {
			r.appendChange(userID, t.ID, domain.ChangeDelete, now)
		}
		n++
	}
	return n, nil
}

func (r *MemoryTaskRepository) Update(ctx context.Context, userID int64, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[userID][t.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	now := r.now()
	r.overwrite(existing, t, now, true)
	r.appendChange(userID, t.ID, domain.ChangeUpdate, now)
	return nil
}

func (r *MemoryTaskRepository) SoftDeleteMany(ctx context.Context, userID int64, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for _, id := range ids {
		t, ok := r.tasks[userID][id]
		if !ok {
			continue
		}
		deletedAt := now
		t.DeletedAt = &deletedAt
		r.appendChange(userID, id, domain.ChangeDelete, now)
		n++
	}
	return n, nil
}

func (r *MemoryTaskRepository) ListChanges(ctx context.Context, userID int64, afterSeq int64, limit int) ([]*domain.TaskChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []*domain.TaskChange
	for _, c := range r.changes[userID] {
		if c.Seq <= afterSeq {
			continue
		}
		cp := *c
		res = append(res, &cp)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func (r *MemoryTaskRepository) Ping(ctx context.Context) error {
	return nil
}

// overwrite mirrors the SQL writes: every field is replaced, createdAt only
// when replaceCreated is set and a value was supplied, deletedAt only when set.
// Both are clamped to now.
func (r *MemoryTaskRepository) overwrite(dst, src *domain.Task, now time.Time, replaceCreated bool) {
	in := src.Clone()
	dst.Title = in.Title
	dst.Description = in.Description
	dst.Estimate = in.Estimate
	dst.DueDate = in.DueDate
	dst.Date = in.Date
	dst.Time = in.Time
	dst.Tags = in.Tags
	dst.Priority = in.Priority
	dst.Checklist = in.Checklist
	dst.Repeatable = in.Repeatable
	if replaceCreated && !in.CreatedAt.IsZero() {
		dst.CreatedAt = clampCreated(in.CreatedAt, now)
	}
	if in.DeletedAt != nil {
		dst.DeletedAt = clampDeleted(in.DeletedAt, now)
	}
	dst.UpdatedAt = &now
}

func (r *MemoryTaskRepository) appendChange(userID int64, taskID, op string, at time.Time) {
	r.seq++
	r.changes[userID] = append(r.changes[userID], &domain.TaskChange{
		Seq:       r.seq,
		UserID:    userID,
		TaskID:    taskID,
		Operation: op,
		ChangedAt: at,
	})
}

func (r *MemoryTaskRepository) userLock(userID int64) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *MemoryTaskRepository) snapshot(userID int64) (map[string]*domain.Task, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]*domain.Task, len(r.tasks[userID]))
	for id, t := range r.tasks[userID] {
		snap[id] = t.Clone()
	}
	return snap, len(r.changes[userID])
}

func (r *MemoryTaskRepository) restore(userID int64, snap map[string]*domain.Task, changeCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.tasks[userID] {
		if _, ok := snap[id]; !ok {
			delete(r.owners, id)
		}
	}
	r.tasks[userID] = snap
	r.changes[userID] = r.changes[userID][:changeCount]
}

// touchedBefore orders tasks by createdAt, then updatedAt, then deletedAt,
// with missing timestamps sorting lowest.
func touchedBefore(a, b *domain.Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if c := compareOptional(a.UpdatedAt, b.UpdatedAt); c != 0 {
		return c < 0
	}
	return compareOptional(a.DeletedAt, b.DeletedAt) < 0
}

func compareOptional(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
