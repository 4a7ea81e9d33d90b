package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"usersvc/internal/common"
	"usersvc/internal/platform/database"
)

// RevocationStore remembers tokens that must no longer be honoured.
type RevocationStore interface {
	// Revoke records token until expiresAt. Revoking a token twice returns
	// common.ErrConflict, atomically, so only one of two racing logouts wins.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// PgRevocationStore keeps revoked tokens in the blacklist_tokens table.
type PgRevocationStore struct {
	db database.DBTX
}

func NewPgRevocationStore(db database.DBTX) *PgRevocationStore {
	return &PgRevocationStore{db: db}
}

func (s *PgRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	query := `INSERT INTO blacklist_tokens (token, expires_at) VALUES ($1, $2)`
	if _, err := s.db.ExecContext(ctx, query, token, expiresAt); err != nil {
		if uniqueViolation(err) != nil {
			return fmt.Errorf("PgRevocationStore.Revoke: %w", common.ErrConflict)
		}
		return common.StorageError("PgRevocationStore.Revoke", err)
	}
	return nil
}

func (s *PgRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM blacklist_tokens WHERE token = $1)`
	var revoked bool
	if err := s.db.QueryRowContext(ctx, query, token).Scan(&revoked); err != nil {
		return false, common.StorageError("PgRevocationStore.IsRevoked", err)
	}
	return revoked, nil
}

// Purge deletes entries whose token expired at or before before.
func (s *PgRevocationStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, common.StorageError("PgRevocationStore.Purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.StorageError("PgRevocationStore.Purge", err)
	}
	return n, nil
}

const revokedKeyPrefix = "revoked_token:"

// RedisRevocationStore keeps revoked tokens as keys that expire together
// with the token, so it never needs purging.
type RedisRevocationStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisRevocationStore(rdb redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb, now: time.Now}
}

// WithClock replaces the clock used to compute key TTLs.
func (s *RedisRevocationStore) WithClock(now func() time.Time) *RedisRevocationStore {
	s.now = now
	return s
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.rdb.SetNX(ctx, revokedKeyPrefix+token, 1, ttl).Result()
	if err != nil {
		return common.StorageError("RedisRevocationStore.Revoke", err)
	}
	if !ok {
		return fmt.Errorf("RedisRevocationStore.Revoke: %w", common.ErrConflict)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKeyPrefix+token).Result()
	if err != nil {
		return false, common.StorageError("RedisRevocationStore.IsRevoked", err)
	}
	return n > 0, nil
}

// MemoryRevocationStore is a process-local store for single-instance
// deployments and tests.
type MemoryRevocationStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{tokens: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token]; ok {
		return fmt.Errorf("MemoryRevocationStore.Revoke: %w", common.ErrConflict)
	}
	s.tokens[token] = expiresAt
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok, nil
}

func (s *MemoryRevocationStore) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, expiresAt := range s.tokens {
		if !expiresAt.After(before) {
			delete(s.tokens, token)
			n++
		}
	}
	return n, nil
}

func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
