package caching

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService fronts Redis for hot lookups that would otherwise hit
// Postgres on every request. Balances are never cached; the ledger
// always reads durable state.
type CacheService interface {
	// API-key resolution cache
	GetTenantIDByKeyHash(ctx context.Context, hash string) (string, error)
	SetTenantKeyHash(ctx context.Context, hash, tenantID string, ttl time.Duration) error
	DeleteTenantKeyHash(ctx context.Context, hash string) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func authKeyKey(hash string) string {
	return fmt.Sprintf("wordledger:authkey:%s", hash)
}

func (r *redisCacheService) GetTenantIDByKeyHash(ctx context.Context, hash string) (string, error) {
	return r.client.Get(ctx, authKeyKey(hash)).Result()
}

func (r *redisCacheService) SetTenantKeyHash(ctx context.Context, hash, tenantID string, ttl time.Duration) error {
	return r.client.Set(ctx, authKeyKey(hash), tenantID, ttl).Err()
}

func (r *redisCacheService) DeleteTenantKeyHash(ctx context.Context, hash string) error {
	return r.client.Del(ctx, authKeyKey(hash)).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Get(ctx, fmt.Sprintf("wordledger:ratelimit:%s", key)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= limit, nil
}

func (r *redisCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	redisKey := fmt.Sprintf("wordledger:ratelimit:%s", key)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	_, err := pipe.Exec(ctx)
	return err
}
