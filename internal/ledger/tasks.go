package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microtasks/backend/internal/config"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/repository"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

func (d Decision) status() (models.Status, error) {
	switch d {
	case Approve:
		return models.StatusApproved, nil
	case Reject:
		return models.StatusRejected, nil
	}
	return "", validationErr("unknown decision %q", string(d))
}

type FundTaskInput struct {
	Title           string
	Description     string
	SubmissionInfo  string
	ImageURL        *string
	PayableAmount   int64
	RequiredWorkers int64
	CompletionDate  time.Time
}

func (in *FundTaskInput) validate(today time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.SubmissionInfo = strings.TrimSpace(in.SubmissionInfo)
	switch {
	case in.Title == "":
		return validationErr("title is required")
	case in.Description == "":
		return validationErr("description is required")
	case in.SubmissionInfo == "":
		return validationErr("submission info is required")
	case in.PayableAmount < 1 || in.PayableAmount > config.MaxPayableAmount:
		return validationErr("payable amount must be between 1 and %d", config.MaxPayableAmount)
	case in.RequiredWorkers < 1 || in.RequiredWorkers > config.MaxRequiredWorkers:
		return validationErr("required workers must be between 1 and %d", config.MaxRequiredWorkers)
	case in.CompletionDate.IsZero():
		return validationErr("completion date is required")
	case models.DateOnly(in.CompletionDate).Before(today):
		return validationErr("completion date is in the past")
	}
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) == "" {
		in.ImageURL = nil
	}
	return nil
}

// FundTask creates a task and escrows payable_amount * required_workers from
// the caller's balance in the same transaction. Coins held by a pending
// withdrawal are not spendable.
func (s *Service) FundTask(ctx context.Context, sess *models.Session, in FundTaskInput) (*models.Task, error) {
	if !sess.HasRole(models.RoleBuyer, models.RoleAdmin) {
		return nil, ErrForbidden
	}
	if err := in.validate(models.DateOnly(s.now())); err != nil {
		return nil, err
	}
	total := in.PayableAmount * in.RequiredWorkers
	task := &models.Task{
		ID:              uuid.New(),
		BuyerID:         sess.AccountID,
		BuyerName:       sess.DisplayName,
		Title:           in.Title,
		Description:     in.Description,
		SubmissionInfo:  in.SubmissionInfo,
		ImageURL:        in.ImageURL,
		PayableAmount:   in.PayableAmount,
		RequiredWorkers: in.RequiredWorkers,
		CompletionDate:  models.DateOnly(in.CompletionDate),
	}

	err := s.run(ctx, "fund_task", func(sc *txScope) error {
		// The row lock keeps a withdrawal request from landing between the
		// reservation check and the debit.
		acc, err := s.stores.Accounts.GetByIDForUpdate(ctx, sc.tx, sess.AccountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: account %s", ErrNotFound, sess.AccountID)
		}
		if err != nil {
			return persistErr("lock account", err)
		}
		reserved, err := s.stores.Withdrawals.PendingSumTx(ctx, sc.tx, sess.AccountID)
		if err != nil {
			return persistErr("sum pending withdrawals", err)
		}
		if available := acc.Coins - reserved; reserved > 0 && acc.Coins >= total && available < total {
			return fmt.Errorf("%w: task costs %d coins, %d available, %d reserved", ErrCoinsReserved, total, available, reserved)
		}
		balance, err := s.stores.Accounts.DeductCoins(ctx, sc.tx, sess.AccountID, total)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: task costs %d coins", ErrInsufficientFunds, total)
		}
		if err != nil {
			return persistErr("deduct escrow", err)
		}
		if err := s.stores.Tasks.CreateTx(ctx, sc.tx, task); err != nil {
			return persistErr("create task", err)
		}
		return s.record(ctx, sc, &models.CreditLedger{
			AccountID:    sess.AccountID,
			TaskID:       uuidPtr(task.ID),
			EntryType:    models.CreditEntryTaskEscrow,
			Amount:       -total,
			BalanceAfter: balance,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task funded", "task_id", task.ID, "buyer_id", sess.AccountID, "escrow", total)
	return task, nil
}

// SubmitWork records a pending submission and takes one slot from the task.
func (s *Service) SubmitWork(ctx context.Context, sess *models.Session, taskID uuid.UUID, details string) (*models.Submission, error) {
	if !sess.HasRole(models.RoleWorker) {
		return nil, ErrForbidden
	}
	details = strings.TrimSpace(details)
	if details == "" {
		return nil, validationErr("submission details are required")
	}
	sub := &models.Submission{
		ID:                uuid.New(),
		TaskID:            taskID,
		WorkerID:          sess.AccountID,
		SubmissionDetails: details,
		Status:            models.StatusPending,
		WorkerName:        sess.DisplayName,
		WorkerEmail:       sess.Email,
	}

	err := s.run(ctx, "submit_work", func(sc *txScope) error {
		task, err := s.stores.Tasks.GetByIDForUpdate(ctx, sc.tx, taskID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		if err != nil {
			return persistErr("load task", err)
		}
		if task.BuyerID == sess.AccountID {
			return fmt.Errorf("%w: cannot submit to your own task", ErrForbidden)
		}
		if task.Expired(s.now()) {
			return ErrTaskExpired
		}
		if _, err := s.stores.Tasks.ClaimSlot(ctx, sc.tx, taskID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTaskFull
			}
			return persistErr("claim slot", err)
		}
		if err := s.stores.Submissions.CreateTx(ctx, sc.tx, sub); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrDuplicateSubmission
			}
			return persistErr("create submission", err)
		}
		sub.TaskTitle = task.Title
		sub.PayableAmount = task.PayableAmount
		sc.notify(task.BuyerID, "/dashboard", fmt.Sprintf("New submission received for %q", task.Title))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// DecideSubmission approves or rejects a pending submission. Only the task
// owner or an admin may decide. Approval pays the worker; rejection returns
// the slot to the task.
func (s *Service) DecideSubmission(ctx context.Context, sess *models.Session, submissionID uuid.UUID, d Decision) (*models.Submission, error) {
	target, err := d.status()
	if err != nil {
		return nil, err
	}
	if !sess.HasRole(models.RoleBuyer, models.RoleAdmin) {
		return nil, ErrForbidden
	}

	var decided *models.Submission
	err = s.run(ctx, "decide_submission", func(sc *txScope) error {
		sub, err := s.stores.Submissions.GetByIDTx(ctx, sc.tx, submissionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: submission %s", ErrNotFound, submissionID)
		}
		if err != nil {
			return persistErr("load submission", err)
		}
		task, err := s.stores.Tasks.GetByIDForUpdate(ctx, sc.tx, sub.TaskID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: task %s", ErrNotFound, sub.TaskID)
		}
		if err != nil {
			return persistErr("load task", err)
		}
		if task.BuyerID != sess.AccountID && sess.Role != models.RoleAdmin {
			return ErrForbidden
		}

		decided, err = s.stores.Submissions.DecideTx(ctx, sc.tx, submissionID, target)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyDecided
		}
		if err != nil {
			return persistErr("update submission", err)
		}
		decided.TaskTitle = task.Title
		decided.PayableAmount = task.PayableAmount

		if d == Reject {
			if _, err := s.stores.Tasks.ReleaseSlot(ctx, sc.tx, task.ID); err != nil {
				return persistErr("release slot", err)
			}
			sc.notify(decided.WorkerID, "/dashboard/submissions",
				fmt.Sprintf("Your submission for %q was rejected.", task.Title))
			return nil
		}

		balance, err := s.stores.Accounts.AddCoins(ctx, sc.tx, decided.WorkerID, task.PayableAmount)
		if err != nil {
			return persistErr("credit worker", err)
		}
		if err := s.record(ctx, sc, &models.CreditLedger{
			AccountID:    decided.WorkerID,
			TaskID:       uuidPtr(task.ID),
			ReferenceID:  uuidPtr(decided.ID),
			EntryType:    models.CreditEntryTaskEarning,
			Amount:       task.PayableAmount,
			BalanceAfter: balance,
		}); err != nil {
			return err
		}
		sc.notify(decided.WorkerID, "/dashboard/submissions",
			fmt.Sprintf("You earned %d coins from %s for completing %q", task.PayableAmount, task.BuyerName, task.Title))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// DeleteTask removes a task and its submissions. Workers with a pending
// submission are told it was closed unpaid. With refunds enabled the escrow
// of open slots and of pending submissions goes back to the owner. It returns
// the number of coins refunded.
func (s *Service) DeleteTask(ctx context.Context, sess *models.Session, taskID uuid.UUID) (int64, error) {
	if !sess.HasRole(models.RoleBuyer, models.RoleAdmin) {
		return 0, ErrForbidden
	}
	var refunded int64
	err := s.run(ctx, "delete_task", func(sc *txScope) error {
		task, err := s.stores.Tasks.GetByIDForUpdate(ctx, sc.tx, taskID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		if err != nil {
			return persistErr("load task", err)
		}
		if task.BuyerID != sess.AccountID && sess.Role != models.RoleAdmin {
			return ErrForbidden
		}
		pending, err := s.stores.Submissions.PendingWorkersTx(ctx, sc.tx, taskID)
		if err != nil {
			return persistErr("load pending submissions", err)
		}
		if unspent := task.PayableAmount * (task.RequiredWorkers + int64(len(pending))); s.refund && unspent > 0 {
			refunded = unspent
			balance, err := s.stores.Accounts.AddCoins(ctx, sc.tx, task.BuyerID, refunded)
			if err != nil {
				return persistErr("refund escrow", err)
			}
			if err := s.record(ctx, sc, &models.CreditLedger{
				AccountID:    task.BuyerID,
				TaskID:       uuidPtr(task.ID),
				EntryType:    models.CreditEntryTaskRefund,
				Amount:       refunded,
				BalanceAfter: balance,
			}); err != nil {
				return err
			}
		}
		if err := s.stores.Tasks.DeleteTx(ctx, sc.tx, taskID); err != nil {
			return persistErr("delete task", err)
		}
		for _, workerID := range pending {
			sc.notify(workerID, "/dashboard/submissions",
				fmt.Sprintf("%q was removed before your submission was reviewed.", task.Title))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("task deleted", "task_id", taskID, "by", sess.AccountID, "refunded", refunded)
	return refunded, nil
}
