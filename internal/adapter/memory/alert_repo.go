package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]entity.PriceAlert
}

var _ repository.AlertRepository = (*AlertRepository)(nil)

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[string]entity.PriceAlert)}
}

func (r *AlertRepository) Create(ctx context.Context, alert *entity.PriceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.alerts[alert.ID] = *alert
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*entity.PriceAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *AlertRepository) list(keep func(entity.PriceAlert) bool) []entity.PriceAlert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.PriceAlert, 0)
	for _, a := range r.alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]entity.PriceAlert, error) {
	return r.list(func(a entity.PriceAlert) bool { return a.UserID == userID }), nil
}

func (r *AlertRepository) ListActive(ctx context.Context) ([]entity.PriceAlert, error) {
	return r.list(func(a entity.PriceAlert) bool { return a.IsActive && !a.Triggered }), nil
}

func (r *AlertRepository) Update(ctx context.Context, alert *entity.PriceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; !ok {
		return repository.ErrNotFound
	}
	r.alerts[alert.ID] = *alert
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.alerts, id)
	return nil
}
