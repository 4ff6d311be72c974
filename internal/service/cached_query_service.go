package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const defaultProductCacheTTL = 5 * time.Minute

type cachedQueryService struct {
	next    repository.ProductQueryService
	cache   repository.ProductQueryCache
	ttl     time.Duration
	group   singleflight.Group
	log     logger.Logger
	metrics *metrics.MetricsManager
}

// NewCachedQueryService serves repeated queries from cache and collapses identical
// concurrent misses into one call to next.
func NewCachedQueryService(next repository.ProductQueryService, cache repository.ProductQueryCache, ttl time.Duration, log logger.Logger, m *metrics.MetricsManager) repository.ProductQueryService {
	if ttl <= 0 {
		ttl = defaultProductCacheTTL
	}
	return &cachedQueryService{next: next, cache: cache, ttl: ttl, log: log, metrics: m}
}

type queryCacheKey struct {
	Filters entity.FilterConfig `json:"f"`
	Limit   int                 `json:"l"`
	Offset  int                 `json:"o"`
}

// QueryCacheKey derives a stable key; encoding/json sorts map keys so equal
// configurations hash equally.
func QueryCacheKey(filters entity.FilterConfig, page entity.Page) (string, error) {
	data, err := json.Marshal(queryCacheKey{Filters: filters, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *cachedQueryService) Query(ctx context.Context, filters entity.FilterConfig, page entity.Page) (entity.QueryResult, error) {
	key, err := QueryCacheKey(filters, page)
	if err != nil {
		return entity.QueryResult{}, fmt.Errorf("failed to build cache key: %w", err)
	}

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		s.metrics.CacheLookup("hit")
		return *cached, nil
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.CacheLookup("miss")
	default:
		s.metrics.CacheLookup("error")
		s.log.Warnf("Product query cache read failed, querying source: %v", err)
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		result, err := s.next.Query(ctx, filters, page)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
			s.log.Warnf("Failed to cache product query: %v", err)
		}
		return result, nil
	})
	if err != nil {
		return entity.QueryResult{}, err
	}
	if shared {
		s.log.Debugf("Product query %s served from a shared in-flight call", key[:12])
	}
	return v.(entity.QueryResult), nil
}
