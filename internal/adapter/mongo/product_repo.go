package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/tracer"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

// ProductRepository queries the products collection with the same semantics as
// the in-process catalog engine. Documents carry a seq field that fixes source order.
type ProductRepository struct {
	collection *mongo.Collection
	log        logger.Logger
	tracer     trace.Tracer
}

var (
	_ repository.ProductQueryService = (*ProductRepository)(nil)
	_ repository.ProductLookup       = (*ProductRepository)(nil)
	_ repository.ProductTable        = (*ProductRepository)(nil)
)

func NewProductRepository(db *mongo.Database, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		collection: db.Collection(productsCollection),
		log:        log,
		tracer:     tracer.Tracer(),
	}
}

func caseInsensitive(pattern string) primitive.Regex {
	return primitive.Regex{Pattern: pattern, Options: "i"}
}

// buildProductFilter translates a filter configuration into a bson query.
func buildProductFilter(f entity.FilterConfig) bson.M {
	query := bson.M{}

	if q := strings.TrimSpace(f.Query); q != "" {
		re := caseInsensitive(regexp.QuoteMeta(q))
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"category": re},
		}
	}

	enabled := f.EnabledMarketplaces()
	if len(enabled) < len(entity.Marketplaces) {
		tags := bson.A{}
		for _, m := range enabled {
			tags = append(tags, string(m))
		}
		query["marketplace"] = bson.M{"$in": tags}
	}

	if f.ConditionActive() {
		query["condition"] = f.Condition
	}
	if f.CategoryActive() {
		query["category"] = caseInsensitive("^" + regexp.QuoteMeta(f.Category) + "$")
	}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	return query
}

// buildProductSort mirrors the stable in-process sort by breaking ties on seq.
func buildProductSort(key entity.SortKey) bson.D {
	switch key {
	case entity.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "seq", Value: 1}}
	case entity.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "seq", Value: 1}}
	case entity.SortRatingDesc:
		return bson.D{{Key: "rating", Value: -1}, {Key: "seq", Value: 1}}
	case entity.SortShippingAsc:
		return bson.D{{Key: "shipping_estimate", Value: 1}, {Key: "seq", Value: 1}}
	default:
		return bson.D{{Key: "seq", Value: 1}}
	}
}

func (r *ProductRepository) Query(ctx context.Context, filters entity.FilterConfig, page entity.Page) (entity.QueryResult, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Query", trace.WithAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("query", filters.Query),
	))
	defer span.End()

	query := buildProductFilter(filters)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		span.RecordError(err)
		return entity.QueryResult{}, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().SetSort(buildProductSort(filters.SortBy))
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	if page.Offset > 0 {
		opts.SetSkip(int64(page.Offset))
	}

	products, err := r.find(ctx, query, opts)
	if err != nil {
		span.RecordError(err)
		return entity.QueryResult{}, err
	}
	span.SetAttributes(attribute.Int("results", len(products)), attribute.Int64("total", total))
	return entity.QueryResult{Products: products, Total: int(total)}, nil
}

func (r *ProductRepository) find(ctx context.Context, query interface{}, opts *options.FindOptions) ([]entity.Product, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	out := make([]entity.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *ProductRepository) ListAll(ctx context.Context) ([]entity.Product, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var doc productDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product %s: %w", id, err)
	}
	p := doc.toDomain()
	return &p, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.Product, error) {
	if len(ids) == 0 {
		return []entity.Product{}, nil
	}
	found, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]entity.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]entity.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Seed upserts products keeping their slice position as source order.
func (r *ProductRepository) Seed(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(products))
	for i, p := range products {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetReplacement(toProductDocument(p, i)).
			SetUpsert(true))
	}
	res, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	r.log.Infof("Seeded products collection: %d upserted, %d modified", res.UpsertedCount, res.ModifiedCount)
	return nil
}
