package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-request-api/internal/models"
)

// MemoryRequestRepository keeps requests in process memory. Every
// conditional transition runs under the write lock, so concurrent callers
// observe exactly one winner.
type MemoryRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]models.Request
	order    []string
}

// NewMemoryRequestRepository returns an empty repository.
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{requests: make(map[string]models.Request)}
}

func (r *MemoryRequestRepository) Insert(_ context.Context, req *models.Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.ID]; exists {
		return "", ErrDuplicate
	}
	r.requests[req.ID] = *req
	r.order = append(r.order, req.ID)
	return req.ID, nil
}

func (r *MemoryRequestRepository) FindByID(_ context.Context, id string) (*models.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

func (r *MemoryRequestRepository) FindByOwner(_ context.Context, owner string) ([]models.Request, error) {
	list := r.filter(func(req models.Request) bool { return req.Owner == owner })
	sort.SliceStable(list, func(i, j int) bool { return list[i].SubmittedAt.After(list[j].SubmittedAt) })
	return list, nil
}

func (r *MemoryRequestRepository) FindByCategory(_ context.Context, category string) ([]models.Request, error) {
	return r.filter(func(req models.Request) bool { return req.Category == category }), nil
}

func (r *MemoryRequestRepository) FindAll(_ context.Context) ([]models.Request, error) {
	return r.filter(func(models.Request) bool { return true }), nil
}

func (r *MemoryRequestRepository) FindPending(_ context.Context) ([]models.Request, error) {
	return r.filter(func(req models.Request) bool { return req.Status == models.RequestStatusPending }), nil
}

func (r *MemoryRequestRepository) CountPending(_ context.Context, category string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, req := range r.requests {
		if req.Category == category && req.Status == models.RequestStatusPending {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRequestRepository) ConditionalUpdateStatus(_ context.Context, id string, expected, next models.RequestStatus, update models.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != expected {
		return false, nil
	}
	processedAt := update.ProcessedAt
	processedBy := update.ProcessedBy
	req.Status = next
	req.ProcessedAt = &processedAt
	req.ProcessedBy = &processedBy
	req.Note = update.Note
	r.requests[id] = req
	return true, nil
}

func (r *MemoryRequestRepository) ConditionalCancel(_ context.Context, id, owner string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Owner != owner || req.Status != models.RequestStatusPending {
		return false, nil
	}
	cancelledAt := at
	req.Status = models.RequestStatusCancelled
	req.CancelledAt = &cancelledAt
	r.requests[id] = req
	return true, nil
}

// filter returns matches in insertion order.
func (r *MemoryRequestRepository) filter(match func(models.Request) bool) []models.Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.Request, 0)
	for _, id := range r.order {
		if req := r.requests[id]; match(req) {
			list = append(list, req)
		}
	}
	return list
}
