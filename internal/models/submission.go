package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is shared by submissions and withdrawals. Pending is the only
// non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Submission struct {
	ID                uuid.UUID `json:"id"`
	TaskID            uuid.UUID `json:"task_id"`
	WorkerID          uuid.UUID `json:"worker_id"`
	SubmissionDetails string    `json:"submission_details"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Populated by list queries that join tasks and accounts.
	TaskTitle     string `json:"task_title,omitempty"`
	PayableAmount int64  `json:"payable_amount,omitempty"`
	WorkerName    string `json:"worker_name,omitempty"`
	WorkerEmail   string `json:"worker_email,omitempty"`
}
