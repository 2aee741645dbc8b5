package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encodable values for a limited time.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Key builds "forecast:<scope>:<sha256 of the JSON encoding of inputs>".
// Scope is usually the season name; ad-hoc simulations use "adhoc".
func Key(scope string, inputs ...interface{}) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, in := range inputs {
		if err := enc.Encode(in); err != nil {
			return "", fmt.Errorf("hashing cache inputs: %w", err)
		}
	}
	return fmt.Sprintf("forecast:%s:%s", scope, hex.EncodeToString(h.Sum(nil))), nil
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	logger logrus.FieldLogger
}

// NewRedis connects to the server at url and verifies it answers.
func NewRedis(ctx context.Context, url string, logger logrus.FieldLogger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.WithField("component", "forecast_cache")
	logger.WithField("db", opt.DB).Info("Forecast cache initialized")
	return &Redis{client: client, logger: logger}, nil
}

// Get decodes the value stored at key into dst.
func (r *Redis) Get(ctx context.Context, key string, dst interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.WithField("key", key).Debug("Cache miss")
			return ErrMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding cached %s: %w", key, err)
	}
	r.logger.WithField("key", key).Debug("Cache hit")
	return nil
}

// Set stores value at key for ttl.
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) error { return ErrMiss }

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
