package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

// PriceHistoryRepository reads recorded samples from the price_history collection,
// one document per (product_id, date).
type PriceHistoryRepository struct {
	collection *mongo.Collection
}

var _ repository.PriceHistoryRepository = (*PriceHistoryRepository)(nil)

func NewPriceHistoryRepository(db *mongo.Database) *PriceHistoryRepository {
	return &PriceHistoryRepository{collection: db.Collection(priceHistoryCollection)}
}

func (r *PriceHistoryRepository) History(ctx context.Context, productID string) ([]entity.PricePoint, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find price history for %s: %w", productID, err)
	}
	defer cursor.Close(ctx)

	var docs []priceSampleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode price history: %w", err)
	}
	out := make([]entity.PricePoint, 0, len(docs))
	for _, d := range docs {
		out = append(out, entity.PricePoint{Date: d.Date.UTC(), Price: d.Price})
	}
	return out, nil
}

// Record stores a sample, replacing any existing sample for the same day.
func (r *PriceHistoryRepository) Record(ctx context.Context, productID string, point entity.PricePoint) error {
	filter := bson.M{"product_id": productID, "date": point.Date}
	doc := priceSampleDocument{ProductID: productID, Date: point.Date, Price: point.Price}
	_, err := r.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to record price sample for %s: %w", productID, err)
	}
	return nil
}

// SeedFromProducts copies embedded product histories into the collection.
func (r *PriceHistoryRepository) SeedFromProducts(ctx context.Context, products []entity.Product) error {
	for _, p := range products {
		for _, pp := range p.PriceHistory {
			if err := r.Record(ctx, p.ID, pp); err != nil {
				return err
			}
		}
	}
	return nil
}
