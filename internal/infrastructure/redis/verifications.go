package redisinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/go-api-verification/internal/domain"
)

const keyPrefix = "verification:"

// cmdable is the subset of redis.UniversalClient the store uses.
type cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// consumeScript deletes the key only while its record still carries ARGV[1].
const consumeScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
if cjson.decode(raw).code ~= ARGV[1] then return 0 end
redis.call('DEL', KEYS[1])
return 1`

// VerificationStore keeps one JSON record per email. Keys expire retention
// after the code itself so a late verify can still report expiry.
type VerificationStore struct {
	client    cmdable
	retention time.Duration
	now       func() time.Time
}

func NewVerificationStore(client cmdable, retention time.Duration) *VerificationStore {
	return &VerificationStore{client: client, retention: retention, now: time.Now}
}

func key(email string) string { return keyPrefix + email }

func (s *VerificationStore) Put(ctx context.Context, rec *domain.VerificationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	ttl := rec.ExpiresAt.Sub(s.now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.client.Set(ctx, key(rec.Email), data, ttl).Err()
}

func (s *VerificationStore) Get(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	data, err := s.client.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	var rec domain.VerificationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &rec, nil
}

func (s *VerificationStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, key(email)).Err()
}

// Consume atomically deletes the record for email if it still holds code.
func (s *VerificationStore) Consume(ctx context.Context, email, code string) error {
	n, err := s.client.Eval(ctx, consumeScript, []string{key(email)}, code).Int()
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return nil
}
