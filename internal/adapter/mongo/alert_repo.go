package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

type AlertRepository struct {
	collection *mongo.Collection
}

var _ repository.AlertRepository = (*AlertRepository)(nil)

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{collection: db.Collection(alertsCollection)}
}

func (r *AlertRepository) Create(ctx context.Context, alert *entity.PriceAlert) error {
	_, err := r.collection.InsertOne(ctx, toAlertDocument(alert))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create price alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*entity.PriceAlert, error) {
	var doc alertDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get price alert %s: %w", id, err)
	}
	alert := doc.toDomain()
	return &alert, nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]entity.PriceAlert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.list(ctx, bson.M{"user_id": userID}, opts)
}

func (r *AlertRepository) ListActive(ctx context.Context) ([]entity.PriceAlert, error) {
	return r.list(ctx, bson.M{"is_active": true, "triggered": false}, options.Find())
}

func (r *AlertRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]entity.PriceAlert, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find price alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []alertDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode price alerts: %w", err)
	}
	out := make([]entity.PriceAlert, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *AlertRepository) Update(ctx context.Context, alert *entity.PriceAlert) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": alert.ID}, toAlertDocument(alert))
	if err != nil {
		return fmt.Errorf("failed to update price alert %s: %w", alert.ID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete price alert %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
