/**
 * @description
 * Redis-backed implementation of the AttemptStore. Every key is written with
 * the configured TTL, so abandoned attempts disappear on their own; the
 * sweeper only exists to release in-memory modal handles, not to garbage
 * collect storage.
 *
 * @dependencies
 * - context, encoding/json, fmt, strings: Standard Go libraries.
 * - github.com/redis/go-redis/v9: The Redis client library.
 * - internal/domain: For the checkout models.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/curbside/checkout-service/internal/domain"
)

// RedisAttemptStore persists attempt state in Redis under TTL keys.
type RedisAttemptStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisAttemptStore creates a store with the given key prefix and TTL.
func NewRedisAttemptStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisAttemptStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "curbside:attempt"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &RedisAttemptStore{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

func (s *RedisAttemptStore) attemptKey(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *RedisAttemptStore) validatedKey(attemptID string) string {
	return fmt.Sprintf("%s:%s:validated", s.prefix, attemptID)
}

// SaveAttempt writes the attempt snapshot, refreshing its TTL.
func (s *RedisAttemptStore) SaveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	body, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}
	if err := s.client.Set(ctx, s.attemptKey(attempt.ID), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// GetAttempt loads an attempt snapshot by id.
func (s *RedisAttemptStore) GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error) {
	body, err := s.client.Get(ctx, s.attemptKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %s: %w", id, err)
	}

	var attempt domain.CheckoutAttempt
	if err := json.Unmarshal(body, &attempt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt %s: %w", id, err)
	}
	return &attempt, nil
}

// DeleteAttempt removes the attempt and its validated-address entry.
func (s *RedisAttemptStore) DeleteAttempt(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.attemptKey(id), s.validatedKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete attempt %s: %w", id, err)
	}
	return nil
}

// SaveValidatedAddress stores the latest eligibility result for the attempt.
func (s *RedisAttemptStore) SaveValidatedAddress(ctx context.Context, attemptID string, v *domain.ValidatedAddress) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal validated address: %w", err)
	}
	if err := s.client.Set(ctx, s.validatedKey(attemptID), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save validated address for %s: %w", attemptID, err)
	}
	return nil
}

// GetValidatedAddress loads the cached eligibility result for the attempt.
func (s *RedisAttemptStore) GetValidatedAddress(ctx context.Context, attemptID string) (*domain.ValidatedAddress, error) {
	body, err := s.client.Get(ctx, s.validatedKey(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load validated address for %s: %w", attemptID, err)
	}

	var v domain.ValidatedAddress
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validated address for %s: %w", attemptID, err)
	}
	return &v, nil
}

// ListAttemptIDs scans the keyspace for live attempt ids.
func (s *RedisAttemptStore) ListAttemptIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	pattern := s.prefix + ":*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempts: %w", err)
		}
		for _, key := range keys {
			if strings.HasSuffix(key, ":validated") {
				continue
			}
			ids = append(ids, strings.TrimPrefix(key, s.prefix+":"))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}
