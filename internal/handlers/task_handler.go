package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microtasks/backend/internal/ledger"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/services"
)

// TaskReader is the subset of the task repository needed for listings.
type TaskReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListOpen(ctx context.Context, today time.Time) ([]*models.Task, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
}

// SubmissionReader is the subset of the submission repository needed for listings.
type SubmissionReader interface {
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Submission, error)
	ListPendingForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error)
}

// TaskHandler serves task and submission endpoints.
type TaskHandler struct {
	Ledger      LedgerService
	Tasks       TaskReader
	Submissions SubmissionReader
	Validator   *services.Validator
	Logger      *slog.Logger
	Now         func() time.Time
}

func (h *TaskHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- POST /api/v1/tasks ---

type createTaskRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	SubmissionInfo  string  `json:"submission_info"`
	ImageURL        *string `json:"image_url"`
	PayableAmount   int64   `json:"payable_amount"`
	RequiredWorkers int64   `json:"required_workers"`
	CompletionDate  string  `json:"completion_date"`
}

type createTaskResponse struct {
	Task       *models.Task `json:"task"`
	TotalCost  int64        `json:"total_cost"`
	NewBalance int64        `json:"new_balance"`
}

// parseDate accepts a plain calendar date or a full RFC 3339 timestamp. A
// timestamp keeps the calendar day of its own offset, so 22:00-05:00 stays on
// the day the client picked instead of rolling over in UTC.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := h.Validator.Decode(services.SchemaCreateTask, r.Body, &req); err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	due, err := parseDate(req.CompletionDate)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody("completion_date must be YYYY-MM-DD"))
		return
	}
	task, err := h.Ledger.FundTask(r.Context(), sess, ledger.FundTaskInput{
		Title:           req.Title,
		Description:     req.Description,
		SubmissionInfo:  req.SubmissionInfo,
		ImageURL:        req.ImageURL,
		PayableAmount:   req.PayableAmount,
		RequiredWorkers: req.RequiredWorkers,
		CompletionDate:  due,
	})
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	total := task.PayableAmount * task.RequiredWorkers
	WriteJSON(w, http.StatusCreated, createTaskResponse{
		Task:       task,
		TotalCost:  total,
		NewBalance: sess.Coins - total,
	})
}

// --- GET /api/v1/tasks ---

// ListOpen returns tasks that still have slots and whose date has not passed.
func (h *TaskHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListOpen(r.Context(), models.DateOnly(h.now()))
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(tasks))
}

// --- GET /api/v1/tasks/{id} ---

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := PathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, h.Logger, notFound(err))
		return
	}
	WriteJSON(w, http.StatusOK, task)
}

// --- GET /api/v1/my-tasks ---

func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	tasks, err := h.Tasks.ListByBuyer(r.Context(), sess.AccountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(tasks))
}

// --- GET /api/v1/admin/tasks ---

func (h *TaskHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.List(r.Context())
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(tasks))
}

// --- DELETE /api/v1/tasks/{id} ---

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	id, ok := PathUUID(w, r, "id")
	if !ok {
		return
	}
	refunded, err := h.Ledger.DeleteTask(r.Context(), sess, id)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": true, "refunded_coins": refunded})
}

// --- POST /api/v1/tasks/{id}/submissions ---

type submitWorkRequest struct {
	SubmissionDetails string `json:"submission_details"`
}

func (h *TaskHandler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	id, ok := PathUUID(w, r, "id")
	if !ok {
		return
	}
	var req submitWorkRequest
	if err := h.Validator.Decode(services.SchemaSubmitWork, r.Body, &req); err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	sub, err := h.Ledger.SubmitWork(r.Context(), sess, id, req.SubmissionDetails)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, sub)
}

// --- GET /api/v1/tasks/{id}/submissions ---

func (h *TaskHandler) ListTaskSubmissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	id, ok := PathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, h.Logger, notFound(err))
		return
	}
	if task.BuyerID != sess.AccountID && sess.Role != models.RoleAdmin {
		WriteError(w, h.Logger, ledger.ErrForbidden)
		return
	}
	subs, err := h.Submissions.ListByTask(r.Context(), id)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(subs))
}

// --- GET /api/v1/submissions ---

func (h *TaskHandler) ListMySubmissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	subs, err := h.Submissions.ListByWorker(r.Context(), sess.AccountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(subs))
}

// --- GET /api/v1/review ---

// ListReview returns pending submissions across the buyer's tasks.
func (h *TaskHandler) ListReview(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	subs, err := h.Submissions.ListPendingForBuyer(r.Context(), sess.AccountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(subs))
}

// --- POST /api/v1/submissions/{id}/approve|reject ---

func (h *TaskHandler) ApproveSubmission(w http.ResponseWriter, r *http.Request) {
	h.decideSubmission(w, r, ledger.Approve)
}

func (h *TaskHandler) RejectSubmission(w http.ResponseWriter, r *http.Request) {
	h.decideSubmission(w, r, ledger.Reject)
}

func (h *TaskHandler) decideSubmission(w http.ResponseWriter, r *http.Request, d ledger.Decision) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	id, ok := PathUUID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.Ledger.DecideSubmission(r.Context(), sess, id, d)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

// notFound turns a missing row into ledger.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}
