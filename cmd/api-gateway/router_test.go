package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-request-api/internal/bootstrap"
	"github.com/noah-isme/campus-request-api/pkg/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		Database:  config.DatabaseConfig{Driver: config.DriverMemory},
		Session: config.SessionConfig{
			Store:         config.DriverMemory,
			TTL:           5 * time.Minute,
			CookieName:    "CMS_Session",
			CookieHashKey: "router-test-hash-key-0123456789",
		},
		Queue:         config.QueueConfig{UnitServiceTime: 15 * time.Minute},
		Notifications: config.NotificationConfig{Enabled: true, Workers: 1, Retries: 1},
		Admin:         config.AdminConfig{Identity: "root", Email: "root@campus.test", Password: "rootpassword"},
	}
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c client) do(method, path, token string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(c.t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (c client) login(identity, password string) string {
	c.t.Helper()
	rec, env := c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": identity, "password": password})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &session))
	require.NotEmpty(c.t, session.Token)
	return session.Token
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	c := client{t: t, router: newRouter(app)}

	rec, env := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@campus.test", "password": "wonderland",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered struct {
		ActivationCode string `json:"activationCode"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &registered))

	rec, env = c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wonderland"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = c.do(http.MethodPost, "/api/v1/auth/activate", "", map[string]string{"email": "alice@campus.test", "code": registered.ActivationCode})
	require.Equal(t, http.StatusNoContent, rec.Code)

	adminToken := c.login("root", "rootpassword")
	rec, _ = c.do(http.MethodPost, "/api/v1/admin/accounts", adminToken, map[string]string{
		"username": "bob", "email": "bob@campus.test", "password": "builder123", "role": "STAFF",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	alice := c.login("alice", "wonderland")
	bob := c.login("bob", "builder123")

	rec, env = c.do(http.MethodPost, "/api/v1/requests", alice, map[string]string{"category": "IT", "details": "VPN access"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var submitted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, "PENDING", submitted.Status)

	rec, _ = c.do(http.MethodGet, "/api/v1/staff/requests", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = c.do(http.MethodPost, "/api/v1/requests", bob, map[string]string{"category": "IT", "details": "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = c.do(http.MethodPost, "/api/v1/staff/requests/"+submitted.ID+"/process", bob, map[string]string{"decision": "APPROVED", "note": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = c.do(http.MethodPost, "/api/v1/requests/"+submitted.ID+"/cancel", alice, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)

	rec, env = c.do(http.MethodGet, "/api/v1/staff/requests/stats", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"APPROVED":1`)

	rec, _ = c.do(http.MethodGet, "/api/v1/staff/requests/export?format=csv", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), submitted.ID)

	rec, _ = c.do(http.MethodPost, "/api/v1/auth/logout", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = c.do(http.MethodGet, "/api/v1/auth/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.Admin.Password = ""
	cfg.Notifications.Enabled = false
	app, err := bootstrap.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	c := client{t: t, router: newRouter(app)}

	rec, _ := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = c.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines_total")
	rec, _ = c.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountSupportEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	c := client{t: t, router: newRouter(app)}
	adminToken := c.login("root", "rootpassword")

	rec, _ := c.do(http.MethodPost, "/api/v1/admin/accounts", adminToken, map[string]interface{}{
		"username": "carol", "email": "carol@campus.test", "password": "password1", "role": "STUDENT",
		"courses": []string{"CS101"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = c.do(http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "carol@campus.test"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, env := c.do(http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "nobody@campus.test"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)

	carol := c.login("carol", "password1")
	rec, env = c.do(http.MethodGet, "/api/v1/requests/courses", carol, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"courses":["CS101"]`)

	rec, _ = c.do(http.MethodPut, "/api/v1/admin/accounts/carol/courses", carol, map[string]interface{}{"courses": []string{"MATH200"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = c.do(http.MethodPut, "/api/v1/admin/accounts/carol/courses", adminToken, map[string]interface{}{"courses": []string{"MATH200", "PHYS110"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = c.do(http.MethodGet, "/api/v1/requests/courses", carol, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"courses":["MATH200","PHYS110"]`)
}
