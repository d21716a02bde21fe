package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
	"tasksync/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, user_id, title, description, estimate, due_date, "date", "time",
	tags, priority, checklist, repeatable, created_at, updated_at, deleted_at`

// TaskRepository is the Postgres task store.
type TaskRepository struct {
	pool    *pgxpool.Pool
	db      dbtx
	changes *ChangeLogRepository
	now     service.Clock
	inTx    bool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{
		pool:    db,
		db:      db,
		changes: NewChangeLogRepository(db),
		now:     storeClock,
	}
}

func storeClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// InUserTx runs fn in one transaction holding an advisory lock on userID,
// so writers of the same user are serialized.
func (r *TaskRepository) InUserTx(ctx context.Context, userID int64, fn func(service.TaskStore) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return fmt.Errorf("lock user %d: %w", userID, err)
	}

	txRepo := &TaskRepository{pool: r.pool, db: tx, changes: r.changes, now: r.now, inTx: true}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID int64, id string) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND id = $2`, userID, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return t, err
}

func (r *TaskRepository) ExistingIDs(ctx context.Context, userID int64, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM tasks WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

func (r *TaskRepository) FindMany(ctx context.Context, userID int64, f domain.TaskFilter) ([]*domain.Task, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if f.ActiveOnly {
		where = append(where, "deleted_at IS NULL")
	}
	if f.CreatedAfter != nil {
		args = append(args, *f.CreatedAfter)
		where = append(where, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if f.UpdatedAfter != nil {
		args = append(args, *f.UpdatedAfter)
		where = append(where, fmt.Sprintf("updated_at > $%d", len(args)))
	}
	if f.DeletedAfter != nil {
		args = append(args, *f.DeletedAfter)
		where = append(where, fmt.Sprintf("deleted_at > $%d", len(args)))
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r *TaskRepository) LatestTouched(ctx context.Context, userID int64) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, updated_at DESC NULLS LAST, deleted_at DESC NULLS LAST
		LIMIT 1`, userID)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// CreateMany inserts tasks in one batch. A conflicting id owned by the same
// user is overwritten in place; one owned by another user is left untouched.
func (r *TaskRepository) CreateMany(ctx context.Context, userID int64, tasks []*domain.Task) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	now := r.now()

	batch := &pgx.Batch{}
	for _, t := range tasks {
		createdAt := clampCreated(t.CreatedAt, now)
		batch.Queue(`
			INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				estimate = EXCLUDED.estimate,
				due_date = EXCLUDED.due_date,
				"date" = EXCLUDED."date",
				"time" = EXCLUDED."time",
				tags = EXCLUDED.tags,
				priority = EXCLUDED.priority,
				checklist = EXCLUDED.checklist,
				repeatable = EXCLUDED.repeatable,
				deleted_at = COALESCE(EXCLUDED.deleted_at, tasks.deleted_at),
				updated_at = EXCLUDED.updated_at
			WHERE tasks.user_id = EXCLUDED.user_id
			RETURNING (xmax = 0)`,
			t.ID, userID, t.Title, t.Description, t.Estimate, t.DueDate, t.Date, t.Time,
			t.Tags, priorityArg(t.Priority), jsonArg(t.Checklist), repeatableArg(t.Repeatable),
			createdAt, now, clampDeleted(t.DeletedAt, now),
		)
	}

	br := r.db.SendBatch(ctx, batch)
	var created, updated, tombstoned []string
	for _, t := range tasks {
		var inserted bool
		err := br.QueryRow().Scan(&inserted)
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WithContext(ctx).Warn("task id owned by another user, skipped", "task_id", t.ID, "user_id", userID)
			continue
		}
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("insert task %s: %w", t.ID, err)
		}
		if inserted {
			created = append(created, t.ID)
			if t.DeletedAt != nil {
				tombstoned = append(tombstoned, t.ID)
			}
		} else {
			updated = append(updated, t.ID)
		}
	}
	if err := br.Close(); err != nil {
		return 0, err
	}

	if err := r.changes.AppendWithTx(ctx, r.db, userID, domain.ChangeCreate, created, now); err != nil {
		return 0, err
	}
	if err := r.changes.AppendWithTx(ctx, r.db, userID, domain.ChangeUpdate, updated, now); err != nil {
		return 0, err
	}
	// a task that arrives already deleted is logged as created, then deleted
	if err := r.changes.AppendWithTx(ctx, r.db, userID, domain.ChangeDelete, tombstoned, now); err != nil {
		return 0, err
	}
	return int64(len(created) + len(updated)), nil
}

// Update replaces every field of an existing task. createdAt and deletedAt
// are kept when the incoming record leaves them out.
func (r *TaskRepository) Update(ctx context.Context, userID int64, t *domain.Task) error {
	now := r.now()
	var createdAt *time.Time
	if !t.CreatedAt.IsZero() {
		c := clampCreated(t.CreatedAt, now)
		createdAt = &c
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE tasks SET
			title = $3,
			description = $4,
			estimate = $5,
			due_date = $6,
			"date" = $7,
			"time" = $8,
			tags = $9,
			priority = $10,
			checklist = $11::jsonb,
			repeatable = $12::jsonb,
			created_at = COALESCE($13, created_at),
			deleted_at = COALESCE($14, deleted_at),
			updated_at = $15
		WHERE user_id = $1 AND id = $2`,
		userID, t.ID, t.Title, t.Description, t.Estimate, t.DueDate, t.Date, t.Time,
		t.Tags, priorityArg(t.Priority), jsonArg(t.Checklist), repeatableArg(t.Repeatable),
		createdAt, clampDeleted(t.DeletedAt, now), now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return r.changes.AppendWithTx(ctx, r.db, userID, domain.ChangeUpdate, []string{t.ID}, now)
}

func (r *TaskRepository) SoftDeleteMany(ctx context.Context, userID int64, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := r.now()

	rows, err := r.db.Query(ctx,
		`UPDATE tasks SET deleted_at = $3 WHERE user_id = $1 AND id = ANY($2) RETURNING id`,
		userID, ids, now,
	)
	if err != nil {
		return 0, err
	}
	deleted, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}

	if err := r.changes.AppendWithTx(ctx, r.db, userID, domain.ChangeDelete, deleted, now); err != nil {
		return 0, err
	}
	return int64(len(deleted)), nil
}

func (r *TaskRepository) ListChanges(ctx context.Context, userID int64, afterSeq int64, limit int) ([]*domain.TaskChange, error) {
	return (&ChangeLogRepository{db: r.db}).ListAfter(ctx, userID, afterSeq, limit)
}

func (r *TaskRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t          domain.Task
		priority   *string
		checklist  []byte
		repeatable []byte
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Estimate,
		&t.DueDate,
		&t.Date,
		&t.Time,
		&t.Tags,
		&priority,
		&checklist,
		&repeatable,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	); err != nil {
		return nil, err
	}

	if priority != nil {
		p := domain.Priority(*priority)
		t.Priority = &p
	}
	if checklist != nil {
		t.Checklist = json.RawMessage(checklist)
	}
	if repeatable != nil {
		var rep domain.Repeatable
		if err := json.Unmarshal(repeatable, &rep); err != nil {
			return nil, fmt.Errorf("task %s repeatable: %w", t.ID, err)
		}
		t.Repeatable = &rep
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.UpdatedAt != nil {
		u := t.UpdatedAt.UTC()
		t.UpdatedAt = &u
	}
	if t.DeletedAt != nil {
		d := t.DeletedAt.UTC()
		t.DeletedAt = &d
	}
	return &t, nil
}

// clampCreated keeps createdAt out of the future so updatedAt >= createdAt.
func clampCreated(createdAt, now time.Time) time.Time {
	if createdAt.IsZero() || createdAt.After(now) {
		return now
	}
	return createdAt.UTC().Truncate(time.Millisecond)
}

// clampDeleted applies the same bound to a client-supplied deletedAt, so a
// skewed device clock cannot push the watermark into the future.
func clampDeleted(deletedAt *time.Time, now time.Time) *time.Time {
	if deletedAt == nil {
		return nil
	}
	d := now
	if !deletedAt.After(now) {
		d = deletedAt.UTC().Truncate(time.Millisecond)
	}
	return &d
}

func priorityArg(p *domain.Priority) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func jsonArg(b json.RawMessage) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func repeatableArg(r *domain.Repeatable) any {
	if r == nil {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return string(b)
}
