package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/campus-request-api/internal/models"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

type validatorStub struct {
	sessions map[string]models.Principal
	seen     string
}

func (v *validatorStub) Validate(_ context.Context, token string) (*models.Principal, error) {
	v.seen = token
	principal, ok := v.sessions[token]
	if !ok {
		return nil, appErrors.ErrSessionInvalid
	}
	return &principal, nil
}

type cookieStub struct{ token string }

func (c cookieStub) Read(*http.Request) (string, error) {
	if c.token == "" {
		return "", http.ErrNoCookie
	}
	return c.token, nil
}

func newProtectedRouter(v *validatorStub, cookies tokenReader, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Session(v, cookies), RequireRoles(roles...), func(c *gin.Context) {
		principal, _ := PrincipalFrom(c)
		c.String(http.StatusOK, principal.Identity)
	})
	return r
}

func TestSessionMiddlewareBearerAndCookie(t *testing.T) {
	v := &validatorStub{sessions: map[string]models.Principal{
		"tok-staff":   {Identity: "registrar", Role: models.RoleStaff},
		"tok-student": {Identity: "alice", Role: models.RoleStudent},
	}}

	router := newProtectedRouter(v, cookieStub{token: "tok-staff"}, models.RoleStaff)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "registrar", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok-student")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "tok-student", v.seen)
}

func TestSessionMiddlewareRejectsMissingAndInvalid(t *testing.T) {
	v := &validatorStub{sessions: map[string]models.Principal{}}
	router := newProtectedRouter(v, cookieStub{}, models.RoleStudent)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_INVALID")
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(_, path string, _ int, _ time.Duration) {
	o.paths = append(o.paths, path)
}

func TestMetricsMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/requests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/requests/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.Equal(t, []string{"/requests/:id", "unmatched"}, observer.paths)
}

func TestAuditLogsSuccessfulMutationsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	v := &validatorStub{sessions: map[string]models.Principal{
		"tok": {Identity: "registrar", Role: models.RoleStaff},
	}}

	r := gin.New()
	r.POST("/requests/:id/process", Session(v, cookieStub{}), Audit(zap.New(core), "request.process"), func(c *gin.Context) {
		if c.Param("id") == "gone" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"r-1", "gone"} {
		req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/process", nil)
		req.Header.Set("Authorization", "Bearer tok")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.FilterLoggerName("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "request.process", fields["action"])
	assert.Equal(t, "registrar", fields["actor"])
	assert.Equal(t, "r-1", fields["resource_id"])
}
