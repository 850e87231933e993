package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/jobs"
)

// Notice kinds, also used as job types.
const (
	NoticeStatusChanged = "request.status_changed"
	NoticePasswordReset = "account.password_reset"
)

// Notice is addressed to one account holder. Kind selects the message.
type Notice struct {
	Kind      string
	RequestID string
	Owner     string
	Email     string
	Category  string
	Status    models.RequestStatus
	Note      *string
	At        time.Time
}

// Message renders the notice text.
func (n Notice) Message() string {
	if n.Kind == NoticePasswordReset {
		return fmt.Sprintf("A password reset was requested for %s", n.Email)
	}
	return fmt.Sprintf("Request %s has been %s", n.RequestID, n.Status)
}

// NoticeSink delivers notices, e.g. by mail.
type NoticeSink interface {
	Deliver(ctx context.Context, notice Notice) error
}

// LogSink writes notices to the log.
type LogSink struct {
	Logger *zap.Logger
}

// Deliver implements NoticeSink.
func (s LogSink) Deliver(_ context.Context, notice Notice) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification",
		zap.String("kind", notice.Kind),
		zap.String("to", notice.Owner),
		zap.String("email", notice.Email),
		zap.String("request_id", notice.RequestID),
		zap.String("status", string(notice.Status)),
		zap.String("message", notice.Message()),
	)
	return nil
}

type noticeQueue interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationService hands status changes to a background queue so the
// request path never waits on delivery.
type NotificationService struct {
	queue   noticeQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService wires the service to queue. A nil queue disables notifications.
func NewNotificationService(queue noticeQueue, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, metrics: metrics, logger: logger}
}

// NotifyStatusChange implements StatusNotifier. Failures are logged only.
func (s *NotificationService) NotifyStatusChange(_ context.Context, req models.Request) {
	if s == nil || s.queue == nil {
		return
	}
	at := time.Now().UTC()
	switch {
	case req.ProcessedAt != nil:
		at = *req.ProcessedAt
	case req.CancelledAt != nil:
		at = *req.CancelledAt
	case req.Status == models.RequestStatusPending:
		at = req.SubmittedAt
	}
	notice := Notice{
		Kind:      NoticeStatusChanged,
		RequestID: req.ID,
		Owner:     req.Owner,
		Category:  req.Category,
		Status:    req.Status,
		Note:      req.Note,
		At:        at,
	}
	s.enqueue(notice)
}

// NotifyPasswordReset queues a reset notice for account. Failures are logged only.
func (s *NotificationService) NotifyPasswordReset(_ context.Context, account models.Account) {
	if s == nil || s.queue == nil {
		return
	}
	s.enqueue(Notice{
		Kind:  NoticePasswordReset,
		Owner: account.Identity,
		Email: account.Email,
		At:    time.Now().UTC(),
	})
}

func (s *NotificationService) enqueue(notice Notice) {
	if err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: notice.Kind, Payload: notice}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("failed to enqueue notification",
			zap.String("kind", notice.Kind),
			zap.String("request_id", notice.RequestID),
			zap.String("to", notice.Owner),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordNotification("queued")
}

// NotificationHandler adapts sink into a jobs.Handler.
func NotificationHandler(sink NoticeSink, metrics *MetricsService) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		notice, ok := job.Payload.(Notice)
		if !ok {
			metrics.RecordNotification("invalid")
			return nil
		}
		if err := sink.Deliver(ctx, notice); err != nil {
			metrics.RecordNotification("failed")
			return err
		}
		metrics.RecordNotification("delivered")
		return nil
	}
}
