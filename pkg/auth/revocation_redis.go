package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	revokedKeyPrefix    = "coursehub:revoked:"
	validAfterKeyPrefix = "coursehub:validafter:"
)

// RedisRevocationStore is a RevocationStore backed by redis. Revocations
// survive process restarts and are shared between replicas; entries expire
// through per-key TTLs instead of a sweep.
type RedisRevocationStore struct {
	client *redis.Client

	// fallbackTTL bounds entries whose natural expiry is unknown or past
	fallbackTTL time.Duration
}

// NewRedisRevocationStore creates a store on an existing client. fallbackTTL
// should be the configured token TTL.
func NewRedisRevocationStore(client *redis.Client, fallbackTTL time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, fallbackTTL: fallbackTTL}
}

// tokens are long and carry signatures; the key is their SHA-256 digest
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(NormalizeToken(token)))
	return revokedKeyPrefix + hex.EncodeToString(sum[:])
}

// Revoke inserts the token with a TTL matching its remaining lifetime
func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := s.fallbackTTL
	if !expiresAt.IsZero() {
		if remaining := time.Until(expiresAt); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.client.Set(ctx, revokedKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks key existence
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// SetValidAfter records the subject's epoch as unix nanos. The key expires
// after the fallback TTL since no token issued before the epoch can outlive
// the token lifetime.
func (s *RedisRevocationStore) SetValidAfter(ctx context.Context, subject string, t time.Time) error {
	key := validAfterKeyPrefix + subject
	nanos := t.UnixNano()

	// keep the maximum of the stored and new epoch
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if prev, perr := strconv.ParseInt(current, 10, 64); perr == nil && prev >= nanos {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, strconv.FormatInt(nanos, 10), s.fallbackTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to set valid-after epoch: %w", err)
	}
	return nil
}

// ValidAfter returns the subject's epoch, or the zero time
func (s *RedisRevocationStore) ValidAfter(ctx context.Context, subject string) (time.Time, error) {
	val, err := s.client.Get(ctx, validAfterKeyPrefix+subject).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get valid-after epoch: %w", err)
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt valid-after epoch for %s: %w", subject, err)
	}
	return time.Unix(0, nanos), nil
}
