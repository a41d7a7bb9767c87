package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a funded unit of work. RequiredWorkers is the number of open slots
// left; it drops on every accepted submission and rises on every rejection.
type Task struct {
	ID              uuid.UUID `json:"id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	BuyerName       string    `json:"buyer_name,omitempty"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	SubmissionInfo  string    `json:"submission_info"`
	ImageURL        *string   `json:"image_url,omitempty"`
	PayableAmount   int64     `json:"payable_amount"`
	RequiredWorkers int64     `json:"required_workers"`
	CompletionDate  time.Time `json:"completion_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Expired reports whether the completion date lies before now's calendar day.
// A task stays open for the whole of its completion date.
func (t *Task) Expired(now time.Time) bool {
	return DateOnly(t.CompletionDate).Before(DateOnly(now))
}

// DateOnly truncates a timestamp to midnight UTC of its UTC calendar day.
func DateOnly(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
