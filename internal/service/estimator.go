package service

import (
	"time"

	"github.com/noah-isme/campus-request-api/pkg/clock"
)

// QueueEstimator projects completion times from queue position.
type QueueEstimator struct {
	clock clock.Clock
	unit  time.Duration
}

// NewQueueEstimator returns an estimator charging unit per queued request.
func NewQueueEstimator(c clock.Clock, unit time.Duration) *QueueEstimator {
	if unit <= 0 {
		unit = 15 * time.Minute
	}
	return &QueueEstimator{clock: clock.OrSystem(c), unit: unit}
}

// Estimate returns now + position*unit. Negative positions count as zero.
func (e *QueueEstimator) Estimate(position int) time.Time {
	if position < 0 {
		position = 0
	}
	return e.clock.Now().Add(time.Duration(position) * e.unit)
}

// Unit returns the per-request service time.
func (e *QueueEstimator) Unit() time.Duration {
	return e.unit
}
