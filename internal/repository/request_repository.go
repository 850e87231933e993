package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-request-api/internal/models"
)

const requestColumns = `id, owner, category, details, status, submitted_at, estimated_completion,
       processed_at, processed_by, note, cancelled_at`

// RequestRepository persists requests in PostgreSQL or SQLite. Queries are
// written with '?' and rebound for the connected driver.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Insert stores a new request and returns its id.
func (r *RequestRepository) Insert(ctx context.Context, req *models.Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	const query = `INSERT INTO requests
	(id, owner, category, details, status, submitted_at, estimated_completion, processed_at, processed_by, note, cancelled_at)
	VALUES (:id, :owner, :category, :details, :status, :submitted_at, :estimated_completion, :processed_at, :processed_by, :note, :cancelled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return "", fmt.Errorf("insert request: %w", err)
	}
	return req.ID, nil
}

// FindByID returns the request or sql.ErrNoRows.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := r.db.Rebind(`SELECT ` + requestColumns + ` FROM requests WHERE id = ?`)
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByOwner lists an owner's requests, newest first.
func (r *RequestRepository) FindByOwner(ctx context.Context, owner string) ([]models.Request, error) {
	return r.selectRequests(ctx, "find requests by owner",
		`SELECT `+requestColumns+` FROM requests WHERE owner = ? ORDER BY submitted_at DESC`, owner)
}

// FindByCategory lists a category in submission order.
func (r *RequestRepository) FindByCategory(ctx context.Context, category string) ([]models.Request, error) {
	return r.selectRequests(ctx, "find requests by category",
		`SELECT `+requestColumns+` FROM requests WHERE category = ? ORDER BY submitted_at ASC`, category)
}

// FindAll lists every request in submission order.
func (r *RequestRepository) FindAll(ctx context.Context) ([]models.Request, error) {
	return r.selectRequests(ctx, "find all requests",
		`SELECT `+requestColumns+` FROM requests ORDER BY submitted_at ASC`)
}

// FindPending lists every pending request across categories.
func (r *RequestRepository) FindPending(ctx context.Context) ([]models.Request, error) {
	return r.selectRequests(ctx, "find pending requests",
		`SELECT `+requestColumns+` FROM requests WHERE status = ? ORDER BY submitted_at ASC`, models.RequestStatusPending)
}

// CountPending returns the depth of a category queue.
func (r *RequestRepository) CountPending(ctx context.Context, category string) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM requests WHERE category = ? AND status = ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, category, models.RequestStatusPending); err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}
	return count, nil
}

// ConditionalUpdateStatus moves a request from expected to next in a single
// statement. It reports false when no row matched id and expected status.
func (r *RequestRepository) ConditionalUpdateStatus(ctx context.Context, id string, expected, next models.RequestStatus, update models.StatusUpdate) (bool, error) {
	query := r.db.Rebind(`UPDATE requests SET status = ?, processed_at = ?, processed_by = ?, note = ?
	WHERE id = ? AND status = ?`)
	result, err := r.db.ExecContext(ctx, query, next, update.ProcessedAt, update.ProcessedBy, update.Note, id, expected)
	if err != nil {
		return false, fmt.Errorf("update request status: %w", err)
	}
	return affected(result, "update request status")
}

// ConditionalCancel cancels a pending request owned by owner in a single statement.
func (r *RequestRepository) ConditionalCancel(ctx context.Context, id, owner string, at time.Time) (bool, error) {
	query := r.db.Rebind(`UPDATE requests SET status = ?, cancelled_at = ?
	WHERE id = ? AND owner = ? AND status = ?`)
	result, err := r.db.ExecContext(ctx, query, models.RequestStatusCancelled, at, id, owner, models.RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("cancel request: %w", err)
	}
	return affected(result, "cancel request")
}

func (r *RequestRepository) selectRequests(ctx context.Context, op, query string, args ...interface{}) ([]models.Request, error) {
	requests := make([]models.Request, 0)
	if err := r.db.SelectContext(ctx, &requests, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return requests, nil
}
