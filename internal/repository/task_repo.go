package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtasks/backend/internal/models"
)

const taskColumns = `t.id, t.buyer_id, a.full_name, t.title, t.description, t.submission_info, t.image_url,
	t.payable_amount, t.required_workers, t.completion_date, t.created_at, t.updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	if err := row.Scan(&t.ID, &t.BuyerID, &t.BuyerName, &t.Title, &t.Description, &t.SubmissionInfo, &t.ImageURL,
		&t.PayableAmount, &t.RequiredWorkers, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows, err error) ([]*models.Task, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, buyer_id, title, description, submission_info, image_url, payable_amount, required_workers, completion_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, t.ID, t.BuyerID, t.Title, t.Description, t.SubmissionInfo, t.ImageURL, t.PayableAmount, t.RequiredWorkers, t.CompletionDate).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks t JOIN accounts a ON a.id = t.buyer_id WHERE t.id = $1
	`, id))
}

// GetByIDForUpdate locks the task row. Call within a transaction.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks t JOIN accounts a ON a.id = t.buyer_id WHERE t.id = $1 FOR UPDATE OF t
	`, id))
}

// ClaimSlot takes one open slot and returns how many remain.
// It returns pgx.ErrNoRows when the task is full or missing.
func (r *TaskRepo) ClaimSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (remaining int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET required_workers = required_workers - 1, updated_at = now()
		WHERE id = $1 AND required_workers > 0
		RETURNING required_workers
	`, id).Scan(&remaining)
	return remaining, err
}

// ReleaseSlot returns one slot to the task.
func (r *TaskRepo) ReleaseSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (remaining int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET required_workers = required_workers + 1, updated_at = now()
		WHERE id = $1
		RETURNING required_workers
	`, id).Scan(&remaining)
	return remaining, err
}

func (r *TaskRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	return err
}

// ListOpen returns tasks that still have slots and whose completion date is not before today.
func (r *TaskRepo) ListOpen(ctx context.Context, today time.Time) ([]*models.Task, error) {
	return collectTasks(r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t JOIN accounts a ON a.id = t.buyer_id
		WHERE t.required_workers > 0 AND t.completion_date >= $1::date
		ORDER BY t.created_at DESC
	`, today))
}

// ListByBuyer orders by completion date, latest first, the way the buyer's task table shows them.
func (r *TaskRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	return collectTasks(r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t JOIN accounts a ON a.id = t.buyer_id
		WHERE t.buyer_id = $1
		ORDER BY t.completion_date DESC, t.created_at DESC
	`, buyerID))
}

func (r *TaskRepo) List(ctx context.Context) ([]*models.Task, error) {
	return collectTasks(r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t JOIN accounts a ON a.id = t.buyer_id
		ORDER BY t.created_at DESC
	`))
}
