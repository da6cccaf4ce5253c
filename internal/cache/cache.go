package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a small JSON cache used for read projections.
type Store interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Incr atomically bumps an integer counter, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
}

// PaymentDetailsVersionKey holds the student's payment-details generation.
func PaymentDetailsVersionKey(rollNumber string) string {
	return "fees:payment-details:gen:" + rollNumber
}

// PaymentDetailsKey returns the key for the student's current generation.
// Readers must resolve it before loading from the database: a snapshot that
// lost a race with a write lands under a generation nobody reads again.
func PaymentDetailsKey(ctx context.Context, s Store, rollNumber string) (string, error) {
	var gen int64
	if _, err := s.Get(ctx, PaymentDetailsVersionKey(rollNumber), &gen); err != nil {
		return "", err
	}
	return fmt.Sprintf("fees:payment-details:%s:%d", rollNumber, gen), nil
}

// InvalidatePaymentDetails moves the student to a new generation. Older
// entries are never read again and lapse on their TTL.
func InvalidatePaymentDetails(ctx context.Context, s Store, rollNumber string) error {
	_, err := s.Incr(ctx, PaymentDetailsVersionKey(rollNumber))
	return err
}

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NopStore never hits.
type NopStore struct{}

func (NopStore) Get(context.Context, string, any) (bool, error) { return false, nil }

func (NopStore) Set(context.Context, string, any, time.Duration) error { return nil }

func (NopStore) Incr(context.Context, string) (int64, error) { return 0, nil }
