package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints HS256 access and refresh tokens. Refresh tokens
// are recorded in Redis keyed by the token string, so they can be
// revoked server-side before they expire.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rdb        *redis.Client
}

// NewTokenIssuer creates a TokenIssuer. rdb may be nil, in which case
// refresh tokens are issued but not tracked.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, rdb *redis.Client) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rdb:        rdb,
	}
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Issue creates an access/refresh token pair for userID.
func (t *TokenIssuer) Issue(ctx context.Context, userID uint) (TokenPair, error) {
	access, err := t.sign(userID, t.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := t.sign(userID, t.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if t.rdb != nil {
		if err := t.rdb.Set(ctx, refreshKey(refresh), userID, t.refreshTTL).Err(); err != nil {
			return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
		}
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *TokenIssuer) sign(userID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func refreshKey(token string) string {
	return "refresh:" + token
}
