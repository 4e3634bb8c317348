package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-admission/internal/logger"
)

const tokenCachePrefix = "admission:token:"

// InitializeTokenCache sets up Redis for verified-token caching and tests
// the connection.
func InitializeTokenCache(redisAddr string, customLogger *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		if customLogger != nil {
			customLogger.Error("AUTH", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		}
		return nil, err
	}

	if customLogger != nil {
		customLogger.Info("AUTH", fmt.Sprintf("Connected to Redis at %s for token caching", redisAddr))
	}
	return redisClient, nil
}

// TokenCache keeps verified identities keyed by token digest so repeated
// scans from the same device skip signature verification. A nil client
// turns the cache into a no-op.
type TokenCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	return &TokenCache{Client: client, TTL: ttl}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenCachePrefix + hex.EncodeToString(sum[:])
}

func (c *TokenCache) Get(ctx context.Context, token string) (*Identity, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}

	raw, err := c.Client.Get(ctx, cacheKey(token)).Result()
	if err != nil {
		return nil, false
	}

	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, false
	}
	return &id, true
}

func (c *TokenCache) Put(ctx context.Context, token string, id *Identity) {
	if c == nil || c.Client == nil || id == nil {
		return
	}

	raw, err := json.Marshal(id)
	if err != nil {
		return
	}
	c.Client.Set(ctx, cacheKey(token), raw, c.TTL)
}
