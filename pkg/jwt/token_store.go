package jwt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token status constants
const (
	TokenStatusNormal = 1 // Token is valid
	TokenStatusKicked = 2 // Token was kicked by new login
	TokenStatusLogout = 3 // Token was logged out
)

// TokenStore manages issued tokens in Redis so that logout and forced
// sign-out are observable before the JWT itself expires.
type TokenStore struct {
	rdb          *redis.Client
	accessExpire time.Duration
	keyPrefix    string
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(rdb *redis.Client, keyPrefix string, expireHours int) *TokenStore {
	if keyPrefix == "" {
		keyPrefix = "cove:"
	}
	return &TokenStore{
		rdb:          rdb,
		accessExpire: time.Duration(expireHours) * time.Hour,
		keyPrefix:    keyPrefix + "token:",
	}
}

// tokenKey generates the Redis key for a user's tokens
// Format: {prefix}token:{userId}
func (s *TokenStore) tokenKey(userId string) string {
	return s.keyPrefix + userId
}

// StoreToken stores a token in Redis with normal status
func (s *TokenStore) StoreToken(ctx context.Context, userId, token string) error {
	key := s.tokenKey(userId)

	// Hash of token -> status, so a user may hold several sessions
	if err := s.rdb.HSet(ctx, key, token, TokenStatusNormal).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	if err := s.rdb.Expire(ctx, key, s.accessExpire).Err(); err != nil {
		return fmt.Errorf("failed to set token expiration: %w", err)
	}

	return nil
}

// TokenStatus checks a token's status in Redis.
// Returns 0 if the token is unknown.
func (s *TokenStore) TokenStatus(ctx context.Context, userId, token string) (int, error) {
	statusStr, err := s.rdb.HGet(ctx, s.tokenKey(userId), token).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token status: %w", err)
	}

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return 0, fmt.Errorf("invalid token status value: %w", err)
	}

	return status, nil
}

// IsTokenValid checks if the token exists and has normal status
func (s *TokenStore) IsTokenValid(ctx context.Context, userId, token string) (bool, error) {
	status, err := s.TokenStatus(ctx, userId, token)
	if err != nil {
		return false, err
	}
	return status == TokenStatusNormal, nil
}

// InvalidateToken marks a token as logged out
func (s *TokenStore) InvalidateToken(ctx context.Context, userId, token string) error {
	key := s.tokenKey(userId)

	exists, err := s.rdb.HExists(ctx, key, token).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if !exists {
		return nil
	}

	if err := s.rdb.HSet(ctx, key, token, TokenStatusLogout).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// DeleteToken removes a token from Redis
func (s *TokenStore) DeleteToken(ctx context.Context, userId, token string) error {
	if err := s.rdb.HDel(ctx, s.tokenKey(userId), token).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// ForceLogoutUser invalidates all tokens for a user
func (s *TokenStore) ForceLogoutUser(ctx context.Context, userId string) error {
	if err := s.rdb.Del(ctx, s.tokenKey(userId)).Err(); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return nil
}

// CleanExpiredTokens removes tokens that are not in normal status
func (s *TokenStore) CleanExpiredTokens(ctx context.Context, userId string) error {
	key := s.tokenKey(userId)

	tokens, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to get tokens: %w", err)
	}

	var toDelete []string
	for token, statusStr := range tokens {
		status, _ := strconv.Atoi(statusStr)
		if status != TokenStatusNormal {
			toDelete = append(toDelete, token)
		}
	}

	if len(toDelete) > 0 {
		if err := s.rdb.HDel(ctx, key, toDelete...).Err(); err != nil {
			return fmt.Errorf("failed to delete expired tokens: %w", err)
		}
	}

	return nil
}
