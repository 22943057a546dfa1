package auth

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenRejected is the single rejection value for every verification
// failure: bad signature, expiry, missing liveness marker in strict mode,
// wrong token type, mismatched refresh string. Callers surface it as a
// uniform unauthorized response without detail.
var ErrTokenRejected = errors.New("token rejected")

// Claims is the verified payload of an access token.
type Claims struct {
	UserID    uint64
	IsAdmin   bool
	ExpiresAt time.Time
}

// TokenEngine issues and verifies HS256 JWTs and cross-checks them against
// the Redis token store. The strict flag is the availability/security
// tradeoff from the validation policy: strict rejects a token whose
// liveness marker is absent or unreadable, lax logs and accepts on JWT
// validity alone. The flag is constructor state so the engine stays
// deterministic and testable.
type TokenEngine struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      *TokenStore
	strict     bool
}

// NewTokenEngine builds an engine from the configured secret and TTLs.
func NewTokenEngine(secret string, accessTTLMin, refreshTTLDays int, store *TokenStore, strict bool) *TokenEngine {
	return &TokenEngine{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
		store:      store,
		strict:     strict,
	}
}

// IssueAccessToken signs a short-lived access token for the user and writes
// the liveness marker with the same expiry. The marker write is best-effort:
// on failure the token is still returned, it just cannot be soft-revoked
// until it expires, and the failure is logged.
func (e *TokenEngine) IssueAccessToken(ctx context.Context, userID uint64, isAdmin bool) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(e.accessTTL)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(userID, 10),
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"is_admin": isAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := e.store.MarkAccess(ctx, userID, isAdmin, exp); err != nil {
		log.Printf("auth: access marker write failed for user %d: %v", userID, err)
	}
	return signed, exp, nil
}

// IssueRefreshToken signs a long-lived refresh token and stores the exact
// string as the user's single refresh record, invalidating any predecessor.
// Unlike the access marker, the store write must succeed: verification
// requires a byte match against it, so a token without a record is dead on
// arrival.
func (e *TokenEngine) IssueRefreshToken(ctx context.Context, userID uint64) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(e.refreshTTL)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(userID, 10),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
		"type": "refresh",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := e.store.PutRefresh(ctx, userID, signed, exp); err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken validates signature and expiry first (failing closed),
// then consults the liveness marker per the strict/lax policy.
func (e *TokenEngine) VerifyAccessToken(ctx context.Context, raw string) (*Claims, error) {
	mc, err := e.parse(raw)
	if err != nil {
		return nil, ErrTokenRejected
	}
	if t, _ := mc["type"].(string); t == "refresh" {
		return nil, ErrTokenRejected
	}
	userID, err := subjectID(mc)
	if err != nil {
		return nil, ErrTokenRejected
	}
	isAdmin, _ := mc["is_admin"].(bool)
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrTokenRejected
	}

	live, storeErr := e.store.AccessLive(ctx, userID)
	if storeErr != nil {
		if e.strict {
			return nil, ErrTokenRejected
		}
		log.Printf("auth: liveness check failed for user %d, accepting on JWT validity: %v", userID, storeErr)
	} else if !live {
		if e.strict {
			return nil, ErrTokenRejected
		}
		log.Printf("auth: no liveness marker for user %d, accepting on JWT validity", userID)
	}

	return &Claims{UserID: userID, IsAdmin: isAdmin, ExpiresAt: exp.Time}, nil
}

// VerifyRefreshToken validates signature, expiry and the refresh type claim,
// then requires the presented string to exactly match the stored record.
// The match is what enforces single-active-refresh-token rotation.
func (e *TokenEngine) VerifyRefreshToken(ctx context.Context, raw string) (uint64, error) {
	mc, err := e.parse(raw)
	if err != nil {
		return 0, ErrTokenRejected
	}
	if t, _ := mc["type"].(string); t != "refresh" {
		return 0, ErrTokenRejected
	}
	userID, err := subjectID(mc)
	if err != nil {
		return 0, ErrTokenRejected
	}
	stored, err := e.store.GetRefresh(ctx, userID)
	if err != nil || stored != raw {
		return 0, ErrTokenRejected
	}
	return userID, nil
}

// InvalidateAll drops both side-store records for the user, revoking the
// live access token (under strict validation) and the refresh token.
func (e *TokenEngine) InvalidateAll(ctx context.Context, userID uint64) error {
	return e.store.DeleteAll(ctx, userID)
}

// parse validates the signature (HS256 only) and registered claims.
func (e *TokenEngine) parse(raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenRejected
		}
		return e.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrTokenRejected
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenRejected
	}
	return mc, nil
}

// subjectID extracts the numeric user id from the sub claim. Subjects are
// issued as strings but a float64 is tolerated for tokens minted by older
// builds.
func subjectID(mc jwt.MapClaims) (uint64, error) {
	switch v := mc["sub"].(type) {
	case string:
		return strconv.ParseUint(v, 10, 64)
	case float64:
		return uint64(v), nil
	}
	return 0, ErrTokenRejected
}
