package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/models"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

type fakeAccountAdmin struct {
	courses map[string][]string
}

func (f *fakeAccountAdmin) Create(_ context.Context, req dto.CreateAccountRequest) (*models.Account, error) {
	return &models.Account{Identity: req.Identity, Role: req.Role, Courses: req.Courses}, nil
}

func (f *fakeAccountAdmin) List(context.Context) ([]models.Account, error) { return nil, nil }

func (f *fakeAccountAdmin) ActivateByEmail(context.Context, string) error { return nil }

func (f *fakeAccountAdmin) Courses(_ context.Context, identity string) ([]string, error) {
	courses, ok := f.courses[identity]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	return courses, nil
}

func (f *fakeAccountAdmin) SetCourses(_ context.Context, identity string, req dto.SetCoursesRequest) ([]string, error) {
	if _, ok := f.courses[identity]; !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	f.courses[identity] = req.Courses
	return req.Courses, nil
}

func TestAccountHandlerCoursesForCurrentStudent(t *testing.T) {
	h := NewAccountHandler(&fakeAccountAdmin{courses: map[string][]string{"alice": {"CS101", "MATH200"}}})

	c, rec := newTestContext(http.MethodGet, "/requests/courses", nil, student)
	h.Courses(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.CoursesResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, "alice", body.Identity)
	assert.Equal(t, []string{"CS101", "MATH200"}, body.Courses)
}

func TestAccountHandlerCoursesRequiresPrincipal(t *testing.T) {
	h := NewAccountHandler(&fakeAccountAdmin{})

	c, rec := newTestContext(http.MethodGet, "/requests/courses", nil, nil)
	h.Courses(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountHandlerSetCourses(t *testing.T) {
	svc := &fakeAccountAdmin{courses: map[string][]string{"alice": nil}}
	h := NewAccountHandler(svc)

	c, rec := newTestContext(http.MethodPut, "/admin/accounts/alice/courses", dto.SetCoursesRequest{Courses: []string{"PHYS110"}}, nil)
	c.Params = gin.Params{{Key: "identity", Value: "alice"}}
	h.SetCourses(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"PHYS110"}, svc.courses["alice"])

	c, rec = newTestContext(http.MethodPut, "/admin/accounts/bob/courses", dto.SetCoursesRequest{Courses: []string{"PHYS110"}}, nil)
	c.Params = gin.Params{{Key: "identity", Value: "bob"}}
	h.SetCourses(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
