package dto

import (
	"time"

	"github.com/noah-isme/campus-request-api/internal/models"
)

// SubmitRequest is the student payload for a new request.
type SubmitRequest struct {
	Category string `json:"category" validate:"required,max=64"`
	Details  string `json:"details" validate:"required,max=4000"`
}

// ProcessRequest captures a staff decision and optional note.
type ProcessRequest struct {
	Decision models.RequestStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Note     *string              `json:"note" validate:"omitempty,max=2000"`
}

// QueueStatsResponse bundles status and category aggregates.
type QueueStatsResponse struct {
	ByStatus   models.QueueStats               `json:"byStatus"`
	ByCategory map[string]models.CategoryStats `json:"byCategory"`
}

// SessionResponse describes the caller's current session.
type SessionResponse struct {
	Principal models.Principal `json:"principal"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
	Token     string           `json:"token,omitempty"`
}
