package auth

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RevocationStore tracks revoked tokens and per-user valid-after epochs. It
// must be safe for concurrent use from many request goroutines.
type RevocationStore interface {
	// Revoke marks a token as unusable. expiresAt is the token's natural
	// expiry, after which the entry may be dropped. Idempotent.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error

	// IsRevoked reports whether a token has been revoked
	IsRevoked(ctx context.Context, token string) (bool, error)

	// SetValidAfter records that tokens for the subject issued before t are
	// invalid. Never moves the epoch backwards.
	SetValidAfter(ctx context.Context, subject string, t time.Time) error

	// ValidAfter returns the subject's epoch, or the zero time if none
	ValidAfter(ctx context.Context, subject string) (time.Time, error)
}

// NormalizeToken strips the transport scheme prefix and surrounding
// whitespace so that "Bearer x" and "x" revoke the same entry
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// MemoryRevocationStore is the in-process RevocationStore. Entries live for
// the process lifetime unless swept after their natural expiry.
type MemoryRevocationStore struct {
	// revoked maps normalized token -> natural expiry (time.Time)
	revoked sync.Map
	// epochs maps subject -> valid-after unix nanos (int64)
	epochs sync.Map

	size atomic.Int64
}

// NewMemoryRevocationStore creates an empty store
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{}
}

// Revoke inserts the token into the revoked set
func (s *MemoryRevocationStore) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	if _, loaded := s.revoked.LoadOrStore(NormalizeToken(token), expiresAt); !loaded {
		s.size.Add(1)
	}
	return nil
}

// IsRevoked checks membership in the revoked set
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	_, ok := s.revoked.Load(NormalizeToken(token))
	return ok, nil
}

// SetValidAfter bumps the subject's epoch forward, never backwards
func (s *MemoryRevocationStore) SetValidAfter(_ context.Context, subject string, t time.Time) error {
	nanos := t.UnixNano()
	for {
		prev, loaded := s.epochs.LoadOrStore(subject, nanos)
		if !loaded || prev.(int64) >= nanos {
			return nil
		}
		if s.epochs.CompareAndSwap(subject, prev, nanos) {
			return nil
		}
	}
}

// ValidAfter returns the subject's epoch, or the zero time
func (s *MemoryRevocationStore) ValidAfter(_ context.Context, subject string) (time.Time, error) {
	v, ok := s.epochs.Load(subject)
	if !ok {
		return time.Time{}, nil
	}
	return time.Unix(0, v.(int64)), nil
}

// Sweep removes entries whose tokens have passed their natural expiry and
// returns the number removed. Intended to run on a schedule.
func (s *MemoryRevocationStore) Sweep(now time.Time) int {
	removed := 0
	s.revoked.Range(func(key, value interface{}) bool {
		if expiresAt := value.(time.Time); !expiresAt.IsZero() && !expiresAt.After(now) {
			if _, loaded := s.revoked.LoadAndDelete(key); loaded {
				s.size.Add(-1)
				removed++
			}
		}
		return true
	})
	return removed
}

// Size returns the number of tracked revocations
func (s *MemoryRevocationStore) Size() int {
	return int(s.size.Load())
}
