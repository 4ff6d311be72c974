package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
)

// KeyValueStore persists opaque client state blobs. Get returns ErrNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// FavoritesStore is the remote favorites table. Add and Remove are idempotent.
type FavoritesStore interface {
	List(ctx context.Context, userID string) ([]string, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
}

type AlertRepository interface {
	Create(ctx context.Context, alert *entity.PriceAlert) error
	GetByID(ctx context.Context, id string) (*entity.PriceAlert, error)
	ListByUser(ctx context.Context, userID string) ([]entity.PriceAlert, error)
	ListActive(ctx context.Context) ([]entity.PriceAlert, error)
	Update(ctx context.Context, alert *entity.PriceAlert) error
	Delete(ctx context.Context, id string) error
}
