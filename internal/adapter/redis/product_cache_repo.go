package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const productQueryKeyPrefix = "product_query:"

type productQueryCache struct {
	client redis.UniversalClient
}

func NewProductQueryCache(client redis.UniversalClient) repository.ProductQueryCache {
	return &productQueryCache{client: client}
}

func (r *productQueryCache) Get(ctx context.Context, key string) (*entity.QueryResult, error) {
	val, err := r.client.Get(ctx, productQueryKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product query %s from redis: %w", key, err)
	}

	var result entity.QueryResult
	if err := json.Unmarshal(val, &result); err != nil {
		_ = r.client.Del(ctx, productQueryKeyPrefix+key).Err()
		return nil, fmt.Errorf("failed to unmarshal product query %s: %w", key, repository.ErrCorruptData)
	}
	return &result, nil
}

func (r *productQueryCache) Set(ctx context.Context, key string, result entity.QueryResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal product query %s: %w", key, err)
	}
	if err := r.client.Set(ctx, productQueryKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set product query %s to redis: %w", key, err)
	}
	return nil
}
