package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/middleware"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/response"
)

type accountAuthenticator interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Activate(ctx context.Context, req dto.ActivateRequest) error
	Login(ctx context.Context, req dto.LoginRequest) (*models.Principal, error)
	RequestPasswordReset(ctx context.Context, req dto.ForgotPasswordRequest) error
}

type sessionManager interface {
	Issue(ctx context.Context, principal models.Principal) (*models.Session, error)
	Revoke(ctx context.Context, token string) error
}

type cookieCodec interface {
	Write(w http.ResponseWriter, token string, expiresAt time.Time) error
	Read(r *http.Request) (string, error)
	Clear(w http.ResponseWriter)
}

// AuthHandler wires login, logout and registration endpoints.
type AuthHandler struct {
	accounts accountAuthenticator
	sessions sessionManager
	cookies  cookieCodec
	logger   *zap.Logger
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(accounts accountAuthenticator, sessions sessionManager, cookies cookieCodec, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, sessions: sessions, cookies: cookies, logger: logger}
}

// Register godoc
// @Summary Register a student account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid registration payload"))
		return
	}

	res, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Activate godoc
// @Summary Activate an account with its emailed code
// @Tags Authentication
// @Accept json
// @Param payload body dto.ActivateRequest true "Activation payload"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/activate [post]
func (h *AuthHandler) Activate(c *gin.Context) {
	var req dto.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid activation payload"))
		return
	}
	if err := h.accounts.Activate(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ForgotPassword godoc
// @Summary Request a password reset notice
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.ForgotPasswordRequest true "Email"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "please enter a valid email"))
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "a password reset link has been sent to your email"})
}

// Login godoc
// @Summary Open a session
// @Description Checks credentials, issues a session token and sets the session cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid login payload"))
		return
	}

	principal, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.Issue(c.Request.Context(), *principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.cookies.Write(c.Writer, session.Token, session.ExpiresAt); err != nil {
		h.logger.Warn("failed to set session cookie", zap.Error(err))
	}
	response.JSON(c, http.StatusOK, dto.SessionResponse{
		Principal: session.Principal,
		ExpiresAt: &session.ExpiresAt,
		Token:     session.Token,
	})
}

// Logout godoc
// @Summary Close the current session
// @Description Revokes the presented token. Unknown or expired tokens are ignored.
// @Tags Authentication
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.TokenFrom(c.Request, h.cookies); token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			response.Error(c, err)
			return
		}
	}
	h.cookies.Clear(c.Writer)
	response.NoContent(c)
}

// Me godoc
// @Summary Current principal
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, dto.SessionResponse{Principal: *principal})
}
