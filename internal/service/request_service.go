package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

type requestStore interface {
	Insert(ctx context.Context, req *models.Request) (string, error)
	FindByID(ctx context.Context, id string) (*models.Request, error)
	FindByOwner(ctx context.Context, owner string) ([]models.Request, error)
	FindByCategory(ctx context.Context, category string) ([]models.Request, error)
	FindAll(ctx context.Context) ([]models.Request, error)
	FindPending(ctx context.Context) ([]models.Request, error)
	CountPending(ctx context.Context, category string) (int, error)
	ConditionalUpdateStatus(ctx context.Context, id string, expected, next models.RequestStatus, update models.StatusUpdate) (bool, error)
	ConditionalCancel(ctx context.Context, id, owner string, at time.Time) (bool, error)
}

// StatusNotifier receives requests whose status just changed.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, req models.Request)
}

// RequestService runs the request lifecycle: submit, cancel, process and triage.
type RequestService struct {
	repo      requestStore
	estimator *QueueEstimator
	clock     clock.Clock
	cache     *CacheService
	notifier  StatusNotifier
	metrics   *MetricsService
	logger    *zap.Logger
	intn      func(n int) int
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

func WithRequestClock(c clock.Clock) RequestServiceOption {
	return func(s *RequestService) { s.clock = clock.OrSystem(c) }
}

// WithRequestCache caches queue statistics.
func WithRequestCache(cache *CacheService) RequestServiceOption {
	return func(s *RequestService) { s.cache = cache }
}

func WithRequestNotifier(n StatusNotifier) RequestServiceOption {
	return func(s *RequestService) { s.notifier = n }
}

func WithRequestMetrics(m *MetricsService) RequestServiceOption {
	return func(s *RequestService) { s.metrics = m }
}

// WithRandomSource replaces the uniform index generator used by PickRandomPending.
func WithRandomSource(intn func(n int) int) RequestServiceOption {
	return func(s *RequestService) {
		if intn != nil {
			s.intn = intn
		}
	}
}

// NewRequestService constructs the lifecycle manager.
func NewRequestService(repo requestStore, estimator *QueueEstimator, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		repo:      repo,
		estimator: estimator,
		clock:     clock.System{},
		logger:    logger,
		intn:      rand.Intn,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.estimator == nil {
		svc.estimator = NewQueueEstimator(svc.clock, 0)
	}
	return svc
}

// Submit queues a new PENDING request for owner.
func (s *RequestService) Submit(ctx context.Context, owner, category, details string) (*models.Request, error) {
	// Category and details are stored verbatim; blank input is rejected.
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(category) == "" || strings.TrimSpace(details) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category and details are required")
	}

	// The count is a best-effort read; concurrent submitters may share a position.
	pending, err := s.repo.CountPending(ctx, category)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to read queue depth")
	}

	req := &models.Request{
		ID:                  uuid.NewString(),
		Owner:               owner,
		Category:            category,
		Details:             details,
		Status:              models.RequestStatusPending,
		SubmittedAt:         s.clock.Now(),
		EstimatedCompletion: s.estimator.Estimate(pending + 1),
	}
	if _, err := s.repo.Insert(ctx, req); err != nil {
		return nil, appErrors.Unavailable(err, "failed to store request")
	}
	req.Semester = models.SemesterOf(req.SubmittedAt)

	s.metrics.RecordSubmission()
	s.afterChange(ctx, *req)
	s.logger.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("owner", owner),
		zap.String("category", category),
		zap.Int("queue_position", pending+1),
	)
	return req, nil
}

// ListByOwner returns the owner's requests, newest first. semester "" or
// "all" disables the filter.
func (s *RequestService) ListByOwner(ctx context.Context, owner, semester string) ([]models.Request, error) {
	requests, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list requests")
	}
	requests = withSemesters(requests)

	semester = strings.TrimSpace(semester)
	if semester == "" || strings.EqualFold(semester, models.SemesterAll) {
		return requests, nil
	}
	filtered := make([]models.Request, 0, len(requests))
	for _, req := range requests {
		if req.Semester == semester {
			filtered = append(filtered, req)
		}
	}
	return filtered, nil
}

// AvailableSemesters lists the terms the owner has requests in plus the
// current one, newest first.
func (s *RequestService) AvailableSemesters(ctx context.Context, owner string) ([]string, error) {
	requests, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list requests")
	}

	now := s.clock.Now()
	latest := map[string]time.Time{models.SemesterOf(now): now}
	for _, req := range requests {
		label := models.SemesterOf(req.SubmittedAt)
		if seen, ok := latest[label]; !ok || req.SubmittedAt.After(seen) {
			latest[label] = req.SubmittedAt
		}
	}

	labels := make([]string, 0, len(latest))
	for label := range latest {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return latest[labels[i]].After(latest[labels[j]]) })
	return labels, nil
}

// ListAll returns every request in submission order.
func (s *RequestService) ListAll(ctx context.Context) ([]models.Request, error) {
	requests, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list requests")
	}
	return withSemesters(requests), nil
}

// ListByCategory returns one category queue in submission order.
func (s *RequestService) ListByCategory(ctx context.Context, category string) ([]models.Request, error) {
	requests, err := s.repo.FindByCategory(ctx, category)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list requests")
	}
	return withSemesters(requests), nil
}

// GetByID returns a single request.
func (s *RequestService) GetByID(ctx context.Context, id string) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Unavailable(err, "failed to load request")
	}
	req.Semester = models.SemesterOf(req.SubmittedAt)
	return req, nil
}

// Cancel withdraws a PENDING request on behalf of its owner.
func (s *RequestService) Cancel(ctx context.Context, id, owner string) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}

	ok, err := s.repo.ConditionalCancel(ctx, id, owner, s.clock.Now())
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to cancel request")
	}
	if !ok {
		return nil, s.classifyCancelFailure(ctx, id, owner)
	}

	req := s.reload(ctx, id, models.RequestStatusCancelled)
	s.metrics.RecordTransition(string(models.RequestStatusCancelled))
	s.afterChange(ctx, *req)
	s.logger.Info("request cancelled", zap.String("request_id", id), zap.String("owner", owner))
	return req, nil
}

// Process records a staff decision on a PENDING request. Only one decision
// can ever succeed for a given request.
func (s *RequestService) Process(ctx context.Context, id string, decision models.RequestStatus, note *string, processedBy string) (*models.Request, error) {
	if !decision.IsDecision() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	if note != nil && strings.TrimSpace(*note) == "" {
		note = nil
	}

	update := models.StatusUpdate{ProcessedAt: s.clock.Now(), ProcessedBy: processedBy, Note: note}
	ok, err := s.repo.ConditionalUpdateStatus(ctx, id, models.RequestStatusPending, decision, update)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to process request")
	}
	if !ok {
		return nil, s.classifyProcessFailure(ctx, id)
	}

	req := s.reload(ctx, id, decision)
	s.metrics.RecordTransition(string(decision))
	s.afterChange(ctx, *req)
	s.logger.Info("request processed",
		zap.String("request_id", id),
		zap.String("decision", string(decision)),
		zap.String("processed_by", processedBy),
	)
	return req, nil
}

// PickRandomPending draws uniformly from every pending request.
func (s *RequestService) PickRandomPending(ctx context.Context) (*models.Request, error) {
	pending, err := s.repo.FindPending(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list pending requests")
	}
	if len(pending) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending requests")
	}
	picked := pending[s.intn(len(pending))]
	picked.Semester = models.SemesterOf(picked.SubmittedAt)
	return &picked, nil
}

// QueueStats counts requests per status. Every status is present.
func (s *RequestService) QueueStats(ctx context.Context) (models.QueueStats, error) {
	return cached(ctx, s.cache, cacheKeyQueueStats, func() (models.QueueStats, error) {
		requests, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, appErrors.Unavailable(err, "failed to compute queue stats")
		}
		stats := make(models.QueueStats, len(models.AllRequestStatuses))
		for _, status := range models.AllRequestStatuses {
			stats[status] = 0
		}
		for _, req := range requests {
			stats[req.Status]++
		}
		return stats, nil
	})
}

// QueueStatsByCategory summarizes totals and pending counts per category.
func (s *RequestService) QueueStatsByCategory(ctx context.Context) (map[string]models.CategoryStats, error) {
	return cached(ctx, s.cache, cacheKeyCategoryStats, func() (map[string]models.CategoryStats, error) {
		requests, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, appErrors.Unavailable(err, "failed to compute category stats")
		}
		stats := make(map[string]models.CategoryStats)
		for _, req := range requests {
			entry := stats[req.Category]
			entry.Total++
			if req.Status == models.RequestStatusPending {
				entry.Pending++
			}
			stats[req.Category] = entry
		}
		return stats, nil
	})
}

func (s *RequestService) classifyCancelFailure(ctx context.Context, id, owner string) error {
	current, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	case err != nil:
		return appErrors.Unavailable(err, "failed to load request")
	case current.Owner != owner:
		return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")
	default:
		s.metrics.RecordConflict("cancel")
		return appErrors.Clone(appErrors.ErrConflict, "request is already "+strings.ToLower(string(current.Status)))
	}
}

func (s *RequestService) classifyProcessFailure(ctx context.Context, id string) error {
	current, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	case err != nil:
		return appErrors.Unavailable(err, "failed to load request")
	default:
		s.metrics.RecordConflict("process")
		return appErrors.Clone(appErrors.ErrConflict, "request is already "+strings.ToLower(string(current.Status)))
	}
}

// reload reads back a request after a committed transition. The write has
// already succeeded, so a failed read degrades to a minimal record.
func (s *RequestService) reload(ctx context.Context, id string, status models.RequestStatus) *models.Request {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("failed to reload request after transition", zap.String("request_id", id), zap.Error(err))
		return &models.Request{ID: id, Status: status}
	}
	req.Semester = models.SemesterOf(req.SubmittedAt)
	return req
}

func (s *RequestService) afterChange(ctx context.Context, req models.Request) {
	s.cache.Invalidate(ctx, cachePatternStats)
	if s.notifier != nil {
		s.notifier.NotifyStatusChange(ctx, req)
	}
}

func withSemesters(requests []models.Request) []models.Request {
	for i := range requests {
		requests[i].Semester = models.SemesterOf(requests[i].SubmittedAt)
	}
	return requests
}
