package models

import (
	"fmt"
	"time"
)

// RequestStatus captures the lifecycle state of a submitted request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// AllRequestStatuses lists every status in lifecycle order.
var AllRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusApproved,
	RequestStatusRejected,
	RequestStatusCancelled,
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected || s == RequestStatusCancelled
}

// IsDecision reports whether staff may set this status via processing.
func (s RequestStatus) IsDecision() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Request is a categorized ticket submitted by a student.
type Request struct {
	ID                  string        `db:"id" json:"id"`
	Owner               string        `db:"owner" json:"owner"`
	Category            string        `db:"category" json:"category"`
	Details             string        `db:"details" json:"details"`
	Status              RequestStatus `db:"status" json:"status"`
	SubmittedAt         time.Time     `db:"submitted_at" json:"submittedAt"`
	EstimatedCompletion time.Time     `db:"estimated_completion" json:"estimatedCompletion"`
	ProcessedAt         *time.Time    `db:"processed_at" json:"processedAt,omitempty"`
	ProcessedBy         *string       `db:"processed_by" json:"processedBy,omitempty"`
	Note                *string       `db:"note" json:"note,omitempty"`
	CancelledAt         *time.Time    `db:"cancelled_at" json:"cancelledAt,omitempty"`
	Semester            string        `db:"-" json:"semester"`
}

// StatusUpdate carries the fields written together with a decision.
type StatusUpdate struct {
	ProcessedAt time.Time
	ProcessedBy string
	Note        *string
}

// QueueStats counts requests per status.
type QueueStats map[RequestStatus]int

// CategoryStats summarizes one category queue.
type CategoryStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
}

// SemesterAll disables semester filtering.
const SemesterAll = "all"

// SemesterOf buckets a timestamp into its academic term label, e.g. "Fall 2025".
// January–May is Spring, June–August is Summer, September–December is Fall.
func SemesterOf(t time.Time) string {
	t = t.UTC()
	term := "Spring"
	switch {
	case t.Month() >= time.September:
		term = "Fall"
	case t.Month() >= time.June:
		term = "Summer"
	}
	return fmt.Sprintf("%s %d", term, t.Year())
}
