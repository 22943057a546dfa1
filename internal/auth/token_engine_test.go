package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func newTestEngine(t *testing.T, strict bool) (*TokenEngine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTokenEngine(testSecret, 15, 7, NewTokenStore(rdb), strict), mr
}

func TestAccessTokenRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, true)
	ctx := context.Background()

	tok, exp, err := e.IssueAccessToken(ctx, 42, true)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := e.VerifyAccessToken(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.True(t, claims.IsAdmin)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestInvalidateAllRevokesAccessUnderStrictValidation(t *testing.T) {
	e, _ := newTestEngine(t, true)
	ctx := context.Background()

	tok, _, err := e.IssueAccessToken(ctx, 7, false)
	require.NoError(t, err)
	_, err = e.VerifyAccessToken(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, e.InvalidateAll(ctx, 7))

	_, err = e.VerifyAccessToken(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestLaxValidationAcceptsMissingMarker(t *testing.T) {
	e, mr := newTestEngine(t, false)
	ctx := context.Background()

	tok, _, err := e.IssueAccessToken(ctx, 7, false)
	require.NoError(t, err)

	mr.FlushAll()

	claims, err := e.VerifyAccessToken(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
}

func TestStrictValidationRejectsOnStoreError(t *testing.T) {
	e, mr := newTestEngine(t, true)
	ctx := context.Background()

	tok, _, err := e.IssueAccessToken(ctx, 7, false)
	require.NoError(t, err)

	mr.Close() // every liveness read now errors

	_, err = e.VerifyAccessToken(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestRefreshRotationInvalidatesPredecessor(t *testing.T) {
	e, _ := newTestEngine(t, true)
	ctx := context.Background()

	first, _, err := e.IssueRefreshToken(ctx, 9)
	require.NoError(t, err)
	uid, err := e.VerifyRefreshToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), uid)

	second, _, err := e.IssueRefreshToken(ctx, 9)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = e.VerifyRefreshToken(ctx, first)
	assert.ErrorIs(t, err, ErrTokenRejected)

	uid, err = e.VerifyRefreshToken(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), uid)
}

func TestTokenTypeDiscrimination(t *testing.T) {
	e, _ := newTestEngine(t, true)
	ctx := context.Background()

	access, _, err := e.IssueAccessToken(ctx, 3, false)
	require.NoError(t, err)
	refresh, _, err := e.IssueRefreshToken(ctx, 3)
	require.NoError(t, err)

	_, err = e.VerifyRefreshToken(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRejected)

	_, err = e.VerifyAccessToken(ctx, refresh)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestForeignSignatureRejected(t *testing.T) {
	e, mr := newTestEngine(t, true)
	ctx := context.Background()

	tok, _, err := e.IssueAccessToken(ctx, 5, false)
	require.NoError(t, err)

	other := NewTokenEngine("a-different-secret", 15, 7,
		NewTokenStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})), true)
	_, err = other.VerifyAccessToken(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	// Negative TTL mints an already-expired token.
	e := NewTokenEngine(testSecret, -1, 7, NewTokenStore(rdb), false)
	ctx := context.Background()

	tok, _, err := e.IssueAccessToken(ctx, 5, false)
	require.NoError(t, err)

	_, err = e.VerifyAccessToken(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestIssueSurvivesMarkerWriteFailure(t *testing.T) {
	// A nil Redis client makes every marker write fail; issuance still
	// returns a cryptographically valid token.
	e := NewTokenEngine(testSecret, 15, 7, NewTokenStore(nil), false)
	ctx := context.Background()

	tok, _, err := e.IssueAccessToken(ctx, 11, true)
	require.NoError(t, err)

	claims, err := e.VerifyAccessToken(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), claims.UserID)
}
