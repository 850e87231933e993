package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/internal/service"
	"github.com/noah-isme/campus-request-api/pkg/response"
)

type staffRequestService interface {
	ListAll(ctx context.Context) ([]models.Request, error)
	ListByCategory(ctx context.Context, category string) ([]models.Request, error)
	GetByID(ctx context.Context, id string) (*models.Request, error)
	Process(ctx context.Context, id string, decision models.RequestStatus, note *string, processedBy string) (*models.Request, error)
	PickRandomPending(ctx context.Context) (*models.Request, error)
	QueueStats(ctx context.Context) (models.QueueStats, error)
	QueueStatsByCategory(ctx context.Context) (map[string]models.CategoryStats, error)
}

type requestExporter interface {
	Export(ctx context.Context, w io.Writer, format, category string) (service.ExportMeta, error)
}

// StaffHandler serves the triage side of the queue.
type StaffHandler struct {
	service   staffRequestService
	exporter  requestExporter
	validator *validator.Validate
}

// NewStaffHandler constructs the staff handler.
func NewStaffHandler(svc staffRequestService, exporter requestExporter, validate *validator.Validate) *StaffHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &StaffHandler{service: svc, exporter: exporter, validator: validate}
}

// List godoc
// @Summary List requests
// @Tags Staff
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} response.Envelope
// @Router /staff/requests [get]
func (h *StaffHandler) List(c *gin.Context) {
	var (
		list []models.Request
		err  error
	)
	if category := c.Query("category"); category != "" {
		list, err = h.service.ListByCategory(c.Request.Context(), category)
	} else {
		list, err = h.service.ListAll(c.Request.Context())
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{"count": len(list)})
}

// Get godoc
// @Summary Get a request
// @Tags Staff
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /staff/requests/{id} [get]
func (h *StaffHandler) Get(c *gin.Context) {
	req, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req)
}

// Process godoc
// @Summary Approve or reject a pending request
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ProcessRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /staff/requests/{id}/process [post]
func (h *StaffHandler) Process(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid decision payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, bindError(err, "decision must be APPROVED or REJECTED"))
		return
	}

	processed, err := h.service.Process(c.Request.Context(), c.Param("id"), req.Decision, req.Note, principal.Identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, processed)
}

// Random godoc
// @Summary Pick a random pending request
// @Tags Staff
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /staff/requests/random [get]
func (h *StaffHandler) Random(c *gin.Context) {
	req, err := h.service.PickRandomPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req)
}

// Stats godoc
// @Summary Queue statistics
// @Tags Staff
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /staff/requests/stats [get]
func (h *StaffHandler) Stats(c *gin.Context) {
	byStatus, err := h.service.QueueStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	byCategory, err := h.service.QueueStatsByCategory(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.QueueStatsResponse{ByStatus: byStatus, ByCategory: byCategory})
}

// Export godoc
// @Summary Export requests
// @Tags Staff
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param category query string false "Category filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /staff/requests/export [get]
func (h *StaffHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", service.ExportFormatCSV)
	var buf bytes.Buffer
	meta, err := h.exporter.Export(c.Request.Context(), &buf, format, c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, meta.Filename, meta.ContentType, buf.Bytes())
}
