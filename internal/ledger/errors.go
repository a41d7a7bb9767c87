package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                   = errors.New("validation failed")
	ErrInsufficientFunds            = errors.New("insufficient funds")
	ErrTaskFull                     = errors.New("task has no open slots")
	ErrTaskExpired                  = errors.New("task completion date has passed")
	ErrAlreadyDecided               = errors.New("already decided")
	ErrPendingWithdrawalExists      = errors.New("a withdrawal request is already pending")
	ErrBelowMinimum                 = errors.New("amount below minimum")
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")
	ErrCoinsReserved                = errors.New("coins reserved by a pending withdrawal")
	ErrDuplicateSubmission          = errors.New("already submitted to this task")
	ErrNotFound                     = errors.New("not found")
	ErrForbidden                    = errors.New("forbidden")
)

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var outcomes = []struct {
	err   error
	label string
}{
	{ErrValidation, "validation"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrTaskFull, "task_full"},
	{ErrTaskExpired, "task_expired"},
	{ErrAlreadyDecided, "already_decided"},
	{ErrPendingWithdrawalExists, "pending_withdrawal_exists"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrInsufficientAvailableBalance, "insufficient_available_balance"},
	{ErrCoinsReserved, "coins_reserved"},
	{ErrDuplicateSubmission, "duplicate_submission"},
	{ErrNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
}

// outcome is the metrics label for an operation result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "persistence"
}
