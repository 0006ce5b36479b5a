package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/inkwell/blog/pkg/config"
	"github.com/inkwell/blog/pkg/logging"
)

const keyPrefix = "inkwell:"

// Cache wraps Redis client
type Cache struct {
	client   *redis.Client
	tokenTTL time.Duration
	logger   *zap.Logger
}

// New creates a new Redis cache client. A disabled cache is returned as nil;
// every method is safe to call on a nil *Cache.
func New(cfg *config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return NewWithClient(client, cfg.TokenTTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, tokenTTL time.Duration) *Cache {
	if tokenTTL <= 0 {
		tokenTTL = 10 * time.Minute
	}
	return &Cache{
		client:   client,
		tokenTTL: tokenTTL,
		logger:   logging.WithComponent("cache"),
	}
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrCacheDisabled
	}
	return c.client.Get(ctx, c.namespaceKey(key)).Result()
}

// Set sets a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Set(ctx, c.namespaceKey(key), value, ttl).Err()
}

// Delete removes a key from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Del(ctx, c.namespaceKey(key)).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// GetToken looks up a cached bearer token by the hash of its secret
func (c *Cache) GetToken(ctx context.Context, hash string) (tokenID, userID int64, ok bool) {
	raw, err := c.Get(ctx, tokenKey(hash))
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, ErrCacheDisabled) {
			c.logger.Warn("Token cache read failed", zap.Error(err))
		}
		return 0, 0, false
	}
	tokenID, userID, ok = decodeToken(raw)
	return tokenID, userID, ok
}

// PutToken caches a token lookup for the configured TTL
func (c *Cache) PutToken(ctx context.Context, hash string, tokenID, userID int64) {
	if c == nil {
		return
	}
	if err := c.Set(ctx, tokenKey(hash), encodeToken(tokenID, userID), c.tokenTTL); err != nil {
		c.logger.Warn("Token cache write failed", zap.Error(err))
	}
}

// ForgetToken drops a cached token lookup
func (c *Cache) ForgetToken(ctx context.Context, hash string) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, tokenKey(hash)); err != nil {
		c.logger.Warn("Token cache delete failed", zap.Error(err))
	}
}

// HashKey builds a fixed-length key from arbitrary parts
func HashKey(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) namespaceKey(key string) string {
	return keyPrefix + key
}

func tokenKey(hash string) string {
	return "token:" + HashKey(hash)
}

func encodeToken(tokenID, userID int64) string {
	return strconv.FormatInt(tokenID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func decodeToken(raw string) (int64, int64, bool) {
	tokenPart, userPart, found := strings.Cut(raw, ":")
	if !found {
		return 0, 0, false
	}
	tokenID, err := strconv.ParseInt(tokenPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(userPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return tokenID, userID, true
}

var (
	// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
	ErrCacheDisabled = fmt.Errorf("cache is disabled")
)
