package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

const sessionTokenBytes = 32

type sessionStore interface {
	Put(ctx context.Context, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}

// identityIndexedStore is implemented by stores that can drop all sessions of one identity.
type identityIndexedStore interface {
	DeleteByIdentity(ctx context.Context, identity string) error
}

// SessionConfig controls token lifetime.
type SessionConfig struct {
	TTL           time.Duration
	SingleSession bool
}

// SessionService issues, validates and revokes opaque session tokens.
type SessionService struct {
	store   sessionStore
	clock   clock.Clock
	config  SessionConfig
	metrics *MetricsService
	logger  *zap.Logger
	entropy func([]byte) (int, error)
}

// SessionServiceOption configures the service.
type SessionServiceOption func(*SessionService)

// WithSessionClock overrides the time source.
func WithSessionClock(c clock.Clock) SessionServiceOption {
	return func(s *SessionService) { s.clock = clock.OrSystem(c) }
}

// WithSessionMetrics attaches metrics.
func WithSessionMetrics(m *MetricsService) SessionServiceOption {
	return func(s *SessionService) { s.metrics = m }
}

// NewSessionService constructs a SessionService.
func NewSessionService(store sessionStore, cfg SessionConfig, logger *zap.Logger, opts ...SessionServiceOption) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	svc := &SessionService{store: store, clock: clock.System{}, config: cfg, logger: logger, entropy: rand.Read}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.config.TTL
}

// Issue creates a session for principal.
func (s *SessionService) Issue(ctx context.Context, principal models.Principal) (*models.Session, error) {
	if strings.TrimSpace(principal.Identity) == "" || !principal.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "principal requires identity and a known role")
	}

	token, err := s.newToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session token")
	}

	if s.config.SingleSession {
		if indexed, ok := s.store.(identityIndexedStore); ok {
			if err := indexed.DeleteByIdentity(ctx, principal.Identity); err != nil {
				return nil, appErrors.Unavailable(err, "failed to revoke previous sessions")
			}
		} else {
			s.logger.Warn("session store cannot enforce single session", zap.String("identity", principal.Identity))
		}
	}

	now := s.clock.Now()
	session := &models.Session{
		Token:     token,
		Principal: principal,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.TTL),
	}
	if err := s.store.Put(ctx, session, s.config.TTL); err != nil {
		return nil, appErrors.Unavailable(err, "failed to store session")
	}

	s.metrics.RecordSession("issued")
	s.logger.Debug("session issued", zap.String("identity", principal.Identity), zap.String("role", string(principal.Role)))
	return session, nil
}

// Validate resolves token to its principal. Expired sessions are deleted.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, appErrors.ErrSessionInvalid
	}

	session, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, appErrors.ErrSessionNotFound) {
			return nil, appErrors.ErrSessionInvalid
		}
		return nil, appErrors.Unavailable(err, "failed to load session")
	}

	if session.ExpiredAt(s.clock.Now()) {
		if err := s.store.Delete(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		s.metrics.RecordSession("expired")
		return nil, appErrors.ErrSessionInvalid
	}

	principal := session.Principal
	return &principal, nil
}

// Revoke deletes the session. Unknown tokens are not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, token); err != nil {
		return appErrors.Unavailable(err, "failed to revoke session")
	}
	s.metrics.RecordSession("revoked")
	return nil
}

func (s *SessionService) newToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := s.entropy(buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
