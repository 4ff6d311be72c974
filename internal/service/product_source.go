package service

import (
	"context"
	"fmt"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/catalog"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const defaultPageSize = 50

// ProductSource resolves a filter configuration to an ordered result set.
type ProductSource interface {
	Fetch(ctx context.Context, filters entity.FilterConfig) (entity.QueryResult, error)
	Name() string
}

type localSource struct {
	table repository.ProductTable
	limit int
}

// NewLocalSource filters an in-memory table with the catalog engine.
func NewLocalSource(table repository.ProductTable, limit int) ProductSource {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return &localSource{table: table, limit: limit}
}

func (s *localSource) Name() string { return "local" }

func (s *localSource) Fetch(ctx context.Context, filters entity.FilterConfig) (entity.QueryResult, error) {
	products, err := s.table.ListAll(ctx)
	if err != nil {
		return entity.QueryResult{}, fmt.Errorf("failed to list products: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return entity.QueryResult{}, err
	}
	matched := catalog.Apply(products, filters.Query, filters)
	return entity.QueryResult{
		Products: catalog.Paginate(matched, entity.Page{Limit: s.limit}),
		Total:    len(matched),
	}, nil
}

type remoteSource struct {
	svc   repository.ProductQueryService
	limit int
}

// NewRemoteSource delegates filtering and sorting to a query service.
func NewRemoteSource(svc repository.ProductQueryService, limit int) ProductSource {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return &remoteSource{svc: svc, limit: limit}
}

func (s *remoteSource) Name() string { return "remote" }

func (s *remoteSource) Fetch(ctx context.Context, filters entity.FilterConfig) (entity.QueryResult, error) {
	result, err := s.svc.Query(ctx, filters, entity.Page{Limit: s.limit})
	if err != nil {
		return entity.QueryResult{}, fmt.Errorf("remote product query failed: %w", err)
	}
	if result.Products == nil {
		result.Products = []entity.Product{}
	}
	return result, nil
}
