package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/response"
)

type accountAdminService interface {
	Create(ctx context.Context, req dto.CreateAccountRequest) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	ActivateByEmail(ctx context.Context, email string) error
	Courses(ctx context.Context, identity string) ([]string, error)
	SetCourses(ctx context.Context, identity string, req dto.SetCoursesRequest) ([]string, error)
}

// AccountHandler exposes admin account management.
type AccountHandler struct {
	service accountAdminService
}

func NewAccountHandler(svc accountAdminService) *AccountHandler {
	return &AccountHandler{service: svc}
}

// List godoc
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, map[string]interface{}{"count": len(accounts)})
}

// Create godoc
// @Summary Create an account with an explicit role
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.CreateAccountRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid account payload"))
		return
	}
	account, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// Activate godoc
// @Summary Activate an account by email
// @Tags Admin
// @Accept json
// @Param payload body dto.ActivateByEmailRequest true "Email"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/accounts/activate [post]
func (h *AccountHandler) Activate(c *gin.Context) {
	var req dto.ActivateByEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		response.Error(c, bindError(err, "email is required"))
		return
	}
	if err := h.service.ActivateByEmail(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Courses godoc
// @Summary Courses the current student is enrolled in
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /requests/courses [get]
func (h *AccountHandler) Courses(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	courses, err := h.service.Courses(c.Request.Context(), principal.Identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CoursesResponse{Identity: principal.Identity, Courses: courses})
}

// SetCourses godoc
// @Summary Replace an account's course list
// @Tags Admin
// @Accept json
// @Produce json
// @Param identity path string true "Account identity"
// @Param payload body dto.SetCoursesRequest true "Courses"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/accounts/{identity}/courses [put]
func (h *AccountHandler) SetCourses(c *gin.Context) {
	var req dto.SetCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course list"))
		return
	}
	identity := c.Param("identity")
	courses, err := h.service.SetCourses(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CoursesResponse{Identity: identity, Courses: courses})
}
