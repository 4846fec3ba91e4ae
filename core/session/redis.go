package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session documents in Redis as JSON values with a TTL.
// Suitable for running many orchestrator processes against a shared store:
// keys are namespaced per call id, so cross-call interference is
// structurally impossible.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

type RedisOption func(*RedisStore)

// WithTTL sets the expiry applied on every write. Default is DefaultTTL.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithKeyPrefix sets the key namespace. Default is "call".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		prefix: "call",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *RedisStore) key(callID string) string {
	return s.prefix + ":" + callID + ":state"
}

func (s *RedisStore) Create(ctx context.Context, callID, tenantID, aiProfileID string) error {
	if callID == "" {
		return ErrInvalidID
	}

	doc := Session{
		CallID:      callID,
		TenantID:    tenantID,
		AIProfileID: aiProfileID,
		StartedAt:   time.Now().UTC(),
		State:       LifecycleActive,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.key(callID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !created {
		return ErrAlreadyExists
	}

	return nil
}

func (s *RedisStore) Read(ctx context.Context, callID string) (*Session, error) {
	if callID == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var doc Session
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &doc, nil
}

// update applies mutate to the current document and writes it back with a
// refreshed TTL. The orchestrator is the single writer for a call id, so
// read-modify-write is sufficient here.
func (s *RedisStore) update(ctx context.Context, callID string, mutate func(*Session)) error {
	doc, err := s.Read(ctx, callID)
	if err != nil {
		return err
	}

	mutate(doc)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(callID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, callID string, role Role, content string) error {
	return s.update(ctx, callID, func(doc *Session) {
		doc.History = append(doc.History, Turn{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   content,
			Timestamp: time.Now().UTC(),
		})
		if role == RoleUser {
			doc.TurnCount++
		}
	})
}

func (s *RedisStore) IncrementSilence(ctx context.Context, callID string) (int, error) {
	count := 0
	err := s.update(ctx, callID, func(doc *Session) {
		doc.SilenceCount++
		count = doc.SilenceCount
	})
	return count, err
}

func (s *RedisStore) ResetSilence(ctx context.Context, callID string) error {
	return s.update(ctx, callID, func(doc *Session) {
		doc.SilenceCount = 0
	})
}

func (s *RedisStore) SetExitReason(ctx context.Context, callID string, reason ExitReason) error {
	return s.update(ctx, callID, func(doc *Session) {
		if doc.ExitReason == ExitReasonNone {
			doc.ExitReason = reason
		}
	})
}

func (s *RedisStore) MarkEnding(ctx context.Context, callID string) error {
	return s.update(ctx, callID, func(doc *Session) {
		if doc.State == LifecycleActive {
			doc.State = LifecycleEnding
		}
	})
}

func (s *RedisStore) MarkEnded(ctx context.Context, callID string) error {
	return s.update(ctx, callID, func(doc *Session) {
		doc.State = LifecycleEnded
	})
}

func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidID
	}

	deleted, err := s.client.Del(ctx, s.key(callID)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}

	return nil
}

var _ Store = (*RedisStore)(nil)
