package repository

import (
	"context"
	"time"

	"tasksync/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ChangeLogRepository reads and appends the per-user task mutation log.
type ChangeLogRepository struct {
	db dbtx
}

func NewChangeLogRepository(db *pgxpool.Pool) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// AppendWithTx records one entry per task id inside the caller's transaction.
func (r *ChangeLogRepository) AppendWithTx(ctx context.Context, tx dbtx, userID int64, op string, taskIDs []string, at time.Time) error {
	if len(taskIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO task_changes (user_id, task_id, operation, changed_at)
		SELECT $1::bigint, t.id, $3::text, $4::timestamptz FROM unnest($2::text[]) WITH ORDINALITY AS t(id, ord)
		ORDER BY t.ord
	`, userID, taskIDs, op, at)
	return err
}

// ListAfter returns up to limit entries with seq > afterSeq, oldest first.
func (r *ChangeLogRepository) ListAfter(ctx context.Context, userID, afterSeq int64, limit int) ([]*domain.TaskChange, error) {
	rows, err := r.db.Query(ctx, `
		SELECT seq, user_id, task_id, operation, changed_at
		FROM task_changes
		WHERE user_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`, userID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*domain.TaskChange
	for rows.Next() {
		var c domain.TaskChange
		if err := rows.Scan(&c.Seq, &c.UserID, &c.TaskID, &c.Operation, &c.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}
