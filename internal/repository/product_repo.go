package repository

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
)

// ProductTable is a fixed, fully loaded product list filtered in process.
type ProductTable interface {
	ListAll(ctx context.Context) ([]entity.Product, error)
}

// ProductQueryService filters and sorts on the remote side.
type ProductQueryService interface {
	Query(ctx context.Context, filters entity.FilterConfig, page entity.Page) (entity.QueryResult, error)
}

type ProductLookup interface {
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// FindByIDs returns the products that exist, in the order of ids.
	FindByIDs(ctx context.Context, ids []string) ([]entity.Product, error)
}

type ProductQueryCache interface {
	Get(ctx context.Context, key string) (*entity.QueryResult, error)
	Set(ctx context.Context, key string, result entity.QueryResult, ttl time.Duration) error
}

type PriceHistoryRepository interface {
	History(ctx context.Context, productID string) ([]entity.PricePoint, error)
}
