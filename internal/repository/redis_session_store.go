package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/campus-request-api/internal/models"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

const (
	sessionKeyPrefix  = "session:"
	identityKeyPrefix = "session:identity:"
)

// RedisSessionStore shares sessions between API replicas. Keys carry the
// session TTL so Redis drops them on its own.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore constructs the store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(token string) string     { return sessionKeyPrefix + token }
func identityKey(identity string) string { return identityKeyPrefix + identity }

func (s *RedisSessionStore) Put(ctx context.Context, session *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	index := identityKey(session.Principal.Identity)
	if err := s.client.SAdd(ctx, index, session.Token).Err(); err != nil {
		return fmt.Errorf("redis index session: %w", err)
	}
	if err := s.client.Expire(ctx, index, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire session index: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteByIdentity drops every indexed session for identity.
func (s *RedisSessionStore) DeleteByIdentity(ctx context.Context, identity string) error {
	index := identityKey(identity)
	tokens, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("redis list sessions: %w", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, index)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete sessions: %w", err)
	}
	return nil
}
