package memory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

//go:embed seed_products.json
var seedProducts []byte

// ProductTable is an immutable in-memory catalog. It serves as the local product
// source, the batch lookup and the embedded price history.
type ProductTable struct {
	products []entity.Product
	byID     map[string]int
}

var (
	_ repository.ProductTable           = (*ProductTable)(nil)
	_ repository.ProductLookup          = (*ProductTable)(nil)
	_ repository.PriceHistoryRepository = (*ProductTable)(nil)
)

func NewProductTable(products []entity.Product) *ProductTable {
	t := &ProductTable{
		products: make([]entity.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	copy(t.products, products)
	for i, p := range t.products {
		t.byID[p.ID] = i
	}
	return t
}

// DefaultProductTable returns the built-in demo catalog.
func DefaultProductTable() (*ProductTable, error) {
	products, err := ParseProducts(seedProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in catalog: %w", err)
	}
	return NewProductTable(products), nil
}

// LoadProductTable reads a JSON array of products from path.
func LoadProductTable(path string) (*ProductTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed file %s: %w", path, err)
	}
	products, err := ParseProducts(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed file %s: %w", path, err)
	}
	return NewProductTable(products), nil
}

// ParseProducts decodes and validates a product list. Marketplace tags are
// normalized, and price history is sorted oldest first.
func ParseProducts(data []byte) ([]entity.Product, error) {
	var products []entity.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(products))
	for i := range products {
		p := &products[i]
		m, err := entity.ParseMarketplace(string(p.Marketplace))
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		p.Marketplace = m
		sort.SliceStable(p.PriceHistory, func(a, b int) bool {
			return p.PriceHistory[a].Date.Before(p.PriceHistory[b].Date)
		})
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %s: %w", p.ID, repository.ErrAlreadyExists)
		}
		seen[p.ID] = struct{}{}
	}
	return products, nil
}

func (t *ProductTable) ListAll(ctx context.Context) ([]entity.Product, error) {
	out := make([]entity.Product, len(t.products))
	copy(out, t.products)
	return out, nil
}

func (t *ProductTable) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	i, ok := t.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := t.products[i]
	return &p, nil
}

func (t *ProductTable) FindByIDs(ctx context.Context, ids []string) ([]entity.Product, error) {
	out := make([]entity.Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := t.byID[id]; ok {
			out = append(out, t.products[i])
		}
	}
	return out, nil
}

func (t *ProductTable) History(ctx context.Context, productID string) ([]entity.PricePoint, error) {
	i, ok := t.byID[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	history := t.products[i].PriceHistory
	out := make([]entity.PricePoint, len(history))
	copy(out, history)
	return out, nil
}
