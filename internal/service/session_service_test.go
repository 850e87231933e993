package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/internal/repository"
	"github.com/noah-isme/campus-request-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

type failingSessionStore struct{ err error }

func (f failingSessionStore) Put(context.Context, *models.Session, time.Duration) error { return f.err }
func (f failingSessionStore) Get(context.Context, string) (*models.Session, error)      { return nil, f.err }
func (f failingSessionStore) Delete(context.Context, string) error                      { return f.err }

var alice = models.Principal{Identity: "alice", Role: models.RoleStudent}

func newTestSessionService(t *testing.T, cfg SessionConfig) (*SessionService, *clock.Manual, *repository.MemorySessionStore) {
	t.Helper()
	manual := clock.NewManual(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
	store := repository.NewMemorySessionStore()
	return NewSessionService(store, cfg, nil, WithSessionClock(manual)), manual, store
}

func TestSessionServiceValidateUntilExpiry(t *testing.T) {
	svc, manual, store := newTestSessionService(t, SessionConfig{TTL: 5 * time.Minute})
	ctx := context.Background()

	session, err := svc.Issue(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, session.Token, 43)
	assert.Equal(t, session.IssuedAt.Add(5*time.Minute), session.ExpiresAt)

	got, err := svc.Validate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, alice, *got)

	manual.Set(session.ExpiresAt.Add(-time.Nanosecond))
	_, err = svc.Validate(ctx, session.Token)
	require.NoError(t, err)

	manual.Set(session.ExpiresAt)
	_, err = svc.Validate(ctx, session.Token)
	assert.True(t, errors.Is(err, appErrors.ErrSessionInvalid))
	assert.Equal(t, 0, store.Len())

	manual.Set(session.IssuedAt)
	_, err = svc.Validate(ctx, session.Token)
	assert.True(t, errors.Is(err, appErrors.ErrSessionInvalid), "expired session must stay gone")
}

func TestSessionServiceRevokeIsIdempotent(t *testing.T) {
	svc, _, _ := newTestSessionService(t, SessionConfig{})
	ctx := context.Background()

	session, err := svc.Issue(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, session.Token))
	require.NoError(t, svc.Revoke(ctx, session.Token))

	_, err = svc.Validate(ctx, session.Token)
	assert.True(t, errors.Is(err, appErrors.ErrSessionInvalid))
}

func TestSessionServiceTokensAreDistinct(t *testing.T) {
	svc, _, _ := newTestSessionService(t, SessionConfig{})
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		session, err := svc.Issue(context.Background(), alice)
		require.NoError(t, err)
		_, dup := seen[session.Token]
		require.False(t, dup)
		seen[session.Token] = struct{}{}
	}
}

func TestSessionServiceMultipleAndSingleSession(t *testing.T) {
	ctx := context.Background()

	multi, _, _ := newTestSessionService(t, SessionConfig{})
	first, err := multi.Issue(ctx, alice)
	require.NoError(t, err)
	_, err = multi.Issue(ctx, alice)
	require.NoError(t, err)
	_, err = multi.Validate(ctx, first.Token)
	assert.NoError(t, err)

	single, _, _ := newTestSessionService(t, SessionConfig{SingleSession: true})
	first, err = single.Issue(ctx, alice)
	require.NoError(t, err)
	second, err := single.Issue(ctx, alice)
	require.NoError(t, err)
	_, err = single.Validate(ctx, first.Token)
	assert.True(t, errors.Is(err, appErrors.ErrSessionInvalid))
	_, err = single.Validate(ctx, second.Token)
	assert.NoError(t, err)
}

func TestSessionServiceRejectsInvalidPrincipal(t *testing.T) {
	svc, _, _ := newTestSessionService(t, SessionConfig{})
	_, err := svc.Issue(context.Background(), models.Principal{Identity: " ", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Issue(context.Background(), models.Principal{Identity: "bob", Role: "GUEST"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSessionServiceStoreFailureIsUnavailable(t *testing.T) {
	svc := NewSessionService(failingSessionStore{err: errors.New("redis down")}, SessionConfig{}, nil)
	_, err := svc.Issue(context.Background(), alice)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
	_, err = svc.Validate(context.Background(), "token")
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
	assert.True(t, errors.Is(svc.Revoke(context.Background(), "token"), appErrors.ErrUnavailable))

	_, err = svc.Validate(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrSessionInvalid))
}

func TestQueueEstimator(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	est := NewQueueEstimator(clock.NewManual(now), 15*time.Minute)
	assert.Equal(t, now, est.Estimate(0))
	assert.Equal(t, now, est.Estimate(-3))
	assert.Equal(t, now.Add(45*time.Minute), est.Estimate(3))
	assert.Equal(t, 15*time.Minute, NewQueueEstimator(nil, 0).Unit())
}
