package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) TryEnqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type sinkStub struct {
	delivered []Notice
	err       error
}

func (s *sinkStub) Deliver(_ context.Context, notice Notice) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, notice)
	return nil
}

func TestNotificationServiceEnqueuesNotice(t *testing.T) {
	queue := &queueStub{}
	svc := NewNotificationService(queue, nil, nil)
	processedAt := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	svc.NotifyStatusChange(context.Background(), models.Request{ID: "r-1", Owner: "alice", Status: models.RequestStatusApproved, ProcessedAt: &processedAt})
	require.Len(t, queue.jobs, 1)
	notice, ok := queue.jobs[0].Payload.(Notice)
	require.True(t, ok)
	assert.Equal(t, processedAt, notice.At)
	assert.Equal(t, "Request r-1 has been APPROVED", notice.Message())
}

func TestNotificationServiceSwallowsQueueErrors(t *testing.T) {
	svc := NewNotificationService(&queueStub{err: jobs.ErrQueueFull}, nil, nil)
	assert.NotPanics(t, func() {
		svc.NotifyStatusChange(context.Background(), models.Request{ID: "r-1"})
	})

	var disabled *NotificationService
	assert.NotPanics(t, func() {
		disabled.NotifyStatusChange(context.Background(), models.Request{ID: "r-1"})
	})
}

func TestNotificationHandlerDelivers(t *testing.T) {
	sink := &sinkStub{}
	handler := NotificationHandler(sink, nil)

	require.NoError(t, handler(context.Background(), jobs.Job{Payload: Notice{RequestID: "r-1"}}))
	require.NoError(t, handler(context.Background(), jobs.Job{Payload: "garbage"}))
	assert.Len(t, sink.delivered, 1)

	sink.err = errors.New("smtp down")
	assert.Error(t, handler(context.Background(), jobs.Job{Payload: Notice{RequestID: "r-2"}}))
}

func TestNotificationServiceQueuesPasswordReset(t *testing.T) {
	queue := &queueStub{}
	svc := NewNotificationService(queue, nil, nil)

	svc.NotifyPasswordReset(context.Background(), models.Account{Identity: "alice", Email: "alice@campus.test"})
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, NoticePasswordReset, queue.jobs[0].Type)
	notice, ok := queue.jobs[0].Payload.(Notice)
	require.True(t, ok)
	assert.Equal(t, "alice", notice.Owner)
	assert.Equal(t, "A password reset was requested for alice@campus.test", notice.Message())
}
