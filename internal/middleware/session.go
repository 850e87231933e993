package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-request-api/internal/models"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
	"github.com/noah-isme/campus-request-api/pkg/logger"
	"github.com/noah-isme/campus-request-api/pkg/response"
)

// Context keys set by Session.
const (
	ContextPrincipalKey = "principal"
	ContextTokenKey     = "sessionToken"
)

type sessionValidator interface {
	Validate(ctx context.Context, token string) (*models.Principal, error)
}

type tokenReader interface {
	Read(r *http.Request) (string, error)
}

// Session requires a live session token, taken from the Authorization
// bearer header or the session cookie.
func Session(sessions sessionValidator, cookies tokenReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c.Request, cookies)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		principal, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Set(ContextTokenKey, token)
		c.Set(logger.IdentityKey, principal.Identity)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Session.
func PrincipalFrom(c *gin.Context) (*models.Principal, bool) {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(*models.Principal)
	return principal, ok && principal != nil
}

// TokenFrom reads the session token from the request without validating it.
func TokenFrom(r *http.Request, cookies tokenReader) string {
	token, err := extractToken(r, cookies)
	if err != nil {
		return ""
	}
	return token
}

func extractToken(r *http.Request, cookies tokenReader) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if cookies == nil {
		return "", appErrors.ErrUnauthorized
	}
	token, err := cookies.Read(r)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", appErrors.ErrUnauthorized
		}
		return "", appErrors.ErrSessionInvalid
	}
	return token, nil
}
