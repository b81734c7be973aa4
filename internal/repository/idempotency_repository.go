package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:attendance:"

// IdempotencyEntry is the value stored under a claimed key. Result stays
// empty until the guarded write commits.
type IdempotencyEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Pending reports whether the guarded write has not committed yet.
func (e IdempotencyEntry) Pending() bool {
	return len(e.Result) == 0
}

// IdempotencyRepository claims request keys in Redis so a replayed submission is applied once.
type IdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyRepository constructs the repository. A nil client claims every key.
func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) *IdempotencyRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyRepository{client: client, ttl: ttl}
}

// Enabled reports whether keys are actually tracked.
func (r *IdempotencyRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Claim reserves key for a payload fingerprint. It returns false when the key was already claimed.
func (r *IdempotencyRepository) Claim(ctx context.Context, key, fingerprint string) (bool, error) {
	if !r.Enabled() {
		return true, nil
	}
	payload, err := json.Marshal(IdempotencyEntry{Fingerprint: fingerprint})
	if err != nil {
		return false, fmt.Errorf("encode idempotency entry: %w", err)
	}
	ok, err := r.client.SetNX(ctx, idempotencyPrefix+key, payload, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

// Lookup returns the entry stored under key, or nil when none exists.
func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (*IdempotencyEntry, error) {
	if !r.Enabled() {
		return nil, nil
	}
	raw, err := r.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	var entry IdempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return &entry, nil
}

// Complete stores the committed result under a key this caller claimed.
func (r *IdempotencyRepository) Complete(ctx context.Context, key, fingerprint string, result []byte) error {
	if !r.Enabled() {
		return nil
	}
	payload, err := json.Marshal(IdempotencyEntry{Fingerprint: fingerprint, Result: result})
	if err != nil {
		return fmt.Errorf("encode idempotency entry: %w", err)
	}
	if err := r.client.SetXX(ctx, idempotencyPrefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release frees a claimed key after a failed write.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	if !r.Enabled() {
		return nil
	}
	if err := r.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
