package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/response"
)

type studentRequestService interface {
	Submit(ctx context.Context, owner, category, details string) (*models.Request, error)
	ListByOwner(ctx context.Context, owner, semester string) ([]models.Request, error)
	AvailableSemesters(ctx context.Context, owner string) ([]string, error)
	Cancel(ctx context.Context, id, owner string) (*models.Request, error)
}

// RequestHandler serves the student side of the queue. The owner is always
// the session principal.
type RequestHandler struct {
	service   studentRequestService
	validator *validator.Validate
}

// NewRequestHandler constructs the student request handler.
func NewRequestHandler(svc studentRequestService, validate *validator.Validate) *RequestHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &RequestHandler{service: svc, validator: validate}
}

// Submit godoc
// @Summary Submit a request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid request payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, bindError(err, "category and details are required"))
		return
	}

	created, err := h.service.Submit(c.Request.Context(), principal.Identity, req.Category, req.Details)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List own requests
// @Tags Requests
// @Produce json
// @Param semester query string false "Semester label, e.g. Fall 2025, or all"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	semester := c.Query("semester")
	list, err := h.service.ListByOwner(c.Request.Context(), principal.Identity, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	if semester == "" {
		semester = models.SemesterAll
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{"semester": semester, "count": len(list)})
}

// Semesters godoc
// @Summary Semesters with requests
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/semesters [get]
func (h *RequestHandler) Semesters(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	semesters, err := h.service.AvailableSemesters(c.Request.Context(), principal.Identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters)
}

// Cancel godoc
// @Summary Cancel a pending request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/cancel [post]
func (h *RequestHandler) Cancel(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	cancelled, err := h.service.Cancel(c.Request.Context(), c.Param("id"), principal.Identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cancelled)
}
