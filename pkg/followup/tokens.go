package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrTokenNotFound = errors.New("follow-up token not found or expired")

// TokenStore mints single-use response-link tokens in redis so they
// survive restarts and are shared across service instances. Keys expire
// on their own; nothing is stored in process memory.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &TokenStore{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return fmt.Sprintf("followup:token:%s", token)
}

// Issue creates a token mapping to the request id.
func (t *TokenStore) Issue(ctx context.Context, requestID string) (string, error) {
	token := uuid.New().String()
	if err := t.client.Set(ctx, tokenKey(token), requestID, t.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing follow-up token: %w", err)
	}
	return token, nil
}

// Resolve returns the request id behind a live token.
func (t *TokenStore) Resolve(ctx context.Context, token string) (string, error) {
	requestID, err := t.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return requestID, nil
}

// Consume resolves and deletes a token in one step; a response link is
// only usable once.
func (t *TokenStore) Consume(ctx context.Context, token string) (string, error) {
	requestID, err := t.client.GetDel(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return requestID, nil
}
