package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtasks/backend/internal/models"
)

const submissionColumns = `id, task_id, worker_id, submission_details, status, created_at, updated_at`

const submissionListColumns = `s.id, s.task_id, s.worker_id, s.submission_details, s.status, s.created_at, s.updated_at,
	t.title, t.payable_amount, a.full_name, a.email`

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	if err := row.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.SubmissionDetails, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSubmissionList(rows pgx.Rows, err error) ([]*models.Submission, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.SubmissionDetails, &s.Status, &s.CreatedAt, &s.UpdatedAt,
			&s.TaskTitle, &s.PayableAmount, &s.WorkerName, &s.WorkerEmail); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// CreateTx inserts a pending submission. A second live submission for the
// same task and worker fails with a unique violation.
func (r *SubmissionRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Submission) error {
	return tx.QueryRow(ctx, `
		INSERT INTO submissions (id, task_id, worker_id, submission_details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, s.ID, s.TaskID, s.WorkerID, s.SubmissionDetails, s.Status).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SubmissionRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	return scanSubmission(tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// DecideTx moves a pending submission to status. It returns pgx.ErrNoRows
// when the submission is no longer pending.
func (r *SubmissionRepo) DecideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.Status) (*models.Submission, error) {
	return scanSubmission(tx.QueryRow(ctx, `
		UPDATE submissions SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+submissionColumns, id, status))
}

// PendingWorkersTx locks the task's pending submissions and returns their
// workers. Each one holds a claimed slot whose escrow is still unpaid.
func (r *SubmissionRepo) PendingWorkersTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		SELECT worker_id FROM submissions
		WHERE task_id = $1 AND status = 'pending'
		ORDER BY created_at
		FOR UPDATE
	`, taskID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *SubmissionRepo) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error) {
	return collectSubmissionList(r.pool.Query(ctx, `
		SELECT `+submissionListColumns+`
		FROM submissions s
		JOIN tasks t ON t.id = s.task_id
		JOIN accounts a ON a.id = s.worker_id
		WHERE s.worker_id = $1
		ORDER BY s.created_at DESC
	`, workerID))
}

func (r *SubmissionRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Submission, error) {
	return collectSubmissionList(r.pool.Query(ctx, `
		SELECT `+submissionListColumns+`
		FROM submissions s
		JOIN tasks t ON t.id = s.task_id
		JOIN accounts a ON a.id = s.worker_id
		WHERE s.task_id = $1
		ORDER BY s.created_at DESC
	`, taskID))
}

// ListPendingForBuyer returns submissions awaiting review across all of a buyer's tasks.
func (r *SubmissionRepo) ListPendingForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	return collectSubmissionList(r.pool.Query(ctx, `
		SELECT `+submissionListColumns+`
		FROM submissions s
		JOIN tasks t ON t.id = s.task_id
		JOIN accounts a ON a.id = s.worker_id
		WHERE t.buyer_id = $1 AND s.status = 'pending'
		ORDER BY s.created_at ASC
	`, buyerID))
}
