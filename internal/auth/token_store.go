// Package auth implements the token engine: JWT issuance and verification
// backed by Redis liveness records. The Redis side of a token is the source
// of truth for "still live" independently of signature validity, which is
// what makes logout work before a token's natural expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when the Redis client is absent or a
// side-store operation fails. Callers decide whether that is fatal based
// on the strict-validation policy.
var ErrStoreUnavailable = errors.New("token store unavailable")

// storeTimeout bounds every side-store round trip so a slow Redis never
// hangs a request.
const storeTimeout = 2 * time.Second

// TokenStore keeps the per-user token records in Redis:
//
//	token:<user_id>         – hash {user_id, exp, is_admin}, expires with the access token
//	refresh_token:<user_id> – the exact refresh token string, expires with it
//
// One record of each kind exists per user, so issuing a new refresh token
// silently invalidates the previous one.
type TokenStore struct {
	rdb *redis.Client
}

// NewTokenStore wraps a Redis client. A nil client is tolerated; every
// operation then reports ErrStoreUnavailable and the engine's policy knob
// decides what happens.
func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

func accessKey(userID uint64) string  { return fmt.Sprintf("token:%d", userID) }
func refreshKey(userID uint64) string { return fmt.Sprintf("refresh_token:%d", userID) }

// MarkAccess records the liveness marker for a freshly issued access token.
// The marker carries the same expiry as the token itself.
func (s *TokenStore) MarkAccess(ctx context.Context, userID uint64, isAdmin bool, exp time.Time) error {
	if s.rdb == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key := accessKey(userID)
	if err := s.rdb.HSet(ctx, key,
		"user_id", strconv.FormatUint(userID, 10),
		"exp", strconv.FormatInt(exp.Unix(), 10),
		"is_admin", strconv.FormatBool(isAdmin),
	).Err(); err != nil {
		return err
	}
	return s.rdb.ExpireAt(ctx, key, exp).Err()
}

// AccessLive reports whether the liveness marker for the user still exists.
func (s *TokenStore) AccessLive(ctx context.Context, userID uint64) (bool, error) {
	if s.rdb == nil {
		return false, ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	n, err := s.rdb.Exists(ctx, accessKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PutRefresh overwrites the user's single refresh-token record. The previous
// refresh token, if any, stops verifying the moment this returns.
func (s *TokenStore) PutRefresh(ctx context.Context, userID uint64, token string, exp time.Time) error {
	if s.rdb == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	return s.rdb.Set(ctx, refreshKey(userID), token, time.Until(exp)).Err()
}

// GetRefresh returns the stored refresh token string for the user, or
// redis.Nil if none is recorded.
func (s *TokenStore) GetRefresh(ctx context.Context, userID uint64) (string, error) {
	if s.rdb == nil {
		return "", ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	return s.rdb.Get(ctx, refreshKey(userID)).Result()
}

// DeleteAll removes both token records for the user. This is the whole
// logout contract: a still-signed JWT held elsewhere only dies through the
// liveness check above.
func (s *TokenStore) DeleteAll(ctx context.Context, userID uint64) error {
	if s.rdb == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	return s.rdb.Del(ctx, accessKey(userID), refreshKey(userID)).Err()
}
