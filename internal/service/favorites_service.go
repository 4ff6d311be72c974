package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const favoritesKeyPrefix = "favorites:"

func FavoritesStorageKey(sessionID string) string {
	return favoritesKeyPrefix + sessionID
}

type FavoritesMode string

const (
	FavoritesModeGuest         FavoritesMode = "guest"
	FavoritesModeAuthenticated FavoritesMode = "authenticated"
)

type FavoritesChangedEvent struct {
	Owner     string    `json:"owner"`
	ProductID string    `json:"product_id"`
	Favorite  bool      `json:"favorite"`
	At        time.Time `json:"at"`
}

type FavoritesService interface {
	Mode() FavoritesMode
	IsFavorite(productID string) bool
	IDs() []string
	ToggleFavorite(ctx context.Context, productID string) (bool, error)
	AddToFavorites(ctx context.Context, productID string) error
	RemoveFromFavorites(ctx context.Context, productID string) error
	Refetch(ctx context.Context) error
	// MergeGuest adds ids to the remote set once, skipping those already present.
	MergeGuest(ctx context.Context, ids []string) error
	// ClearLocal empties the set and deletes its local storage key.
	ClearLocal()
	Flush(ctx context.Context) error
}

type FavoritesServiceConfig struct {
	StorageKey   string
	WriteTimeout time.Duration
}

type favoritesService struct {
	mu       sync.Mutex
	set      *entity.FavoriteSet
	identity entity.Identity
	// pending maps a product ID to the generation of its latest unconfirmed remote change.
	pending map[string]uint64
	gen     uint64

	key       string
	remote    repository.FavoritesStore
	persister *statePersister
	publisher nats.MessagePublisher
	clock     clock.Clock
	log       logger.Logger
	metrics   *metrics.MetricsManager
}

// NewFavoritesService builds a guest manager backed by local when identity is the
// zero value, and a remote-backed manager otherwise.
func NewFavoritesService(
	ctx context.Context,
	identity entity.Identity,
	local repository.KeyValueStore,
	remote repository.FavoritesStore,
	log logger.Logger,
	publisher nats.MessagePublisher,
	m *metrics.MetricsManager,
	clk clock.Clock,
	cfg FavoritesServiceConfig,
) FavoritesService {
	if publisher == nil {
		publisher = nats.NewNoopPublisher()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	s := &favoritesService{
		set:       entity.NewFavoriteSet(),
		identity:  identity,
		pending:   make(map[string]uint64),
		key:       cfg.StorageKey,
		remote:    remote,
		publisher: publisher,
		clock:     clk,
		log:       log,
		metrics:   m,
	}

	if s.Mode() == FavoritesModeGuest {
		s.persister = newStatePersister(local, cfg.StorageKey, "favorites", cfg.WriteTimeout, log, m)
		s.set = s.loadLocal(ctx, local)
		return s
	}

	if err := s.Refetch(ctx); err != nil {
		s.log.Warnf("Initial favorites fetch for user %s failed, starting empty: %v", identity.UserID, err)
	}
	return s
}

func (s *favoritesService) loadLocal(ctx context.Context, local repository.KeyValueStore) *entity.FavoriteSet {
	data, err := local.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnf("Failed to load favorites %s, starting empty: %v", s.key, err)
		}
		return entity.NewFavoriteSet()
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.log.Warnf("Discarding malformed favorites data under %s: %v", s.key, err)
		return entity.NewFavoriteSet()
	}
	return entity.NewFavoriteSet(ids...)
}

func (s *favoritesService) Mode() FavoritesMode {
	if s.identity.IsAuthenticated() {
		return FavoritesModeAuthenticated
	}
	return FavoritesModeGuest
}

func (s *favoritesService) IsFavorite(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Contains(productID)
}

func (s *favoritesService) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.IDs()
}

func (s *favoritesService) ToggleFavorite(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, entity.ErrEmptyProductID
	}
	s.mu.Lock()
	favorite := s.set.Contains(productID)
	s.mu.Unlock()

	if favorite {
		if err := s.RemoveFromFavorites(ctx, productID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.AddToFavorites(ctx, productID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *favoritesService) AddToFavorites(ctx context.Context, productID string) error {
	return s.change(ctx, productID, true)
}

func (s *favoritesService) RemoveFromFavorites(ctx context.Context, productID string) error {
	return s.change(ctx, productID, false)
}

func opName(add bool) string {
	if add {
		return "add"
	}
	return "remove"
}

func (s *favoritesService) change(ctx context.Context, productID string, add bool) error {
	if productID == "" {
		return entity.ErrEmptyProductID
	}
	op := opName(add)

	s.mu.Lock()
	var changed bool
	if add {
		changed = s.set.Add(productID)
	} else {
		changed = s.set.Remove(productID)
	}
	if !changed {
		s.mu.Unlock()
		s.metrics.FavoriteMutation(op, "noop")
		return nil
	}

	if s.Mode() == FavoritesModeGuest {
		s.persistLocked()
		s.mu.Unlock()
		s.metrics.FavoriteMutation(op, "ok")
		s.publish(ctx, productID, add)
		return nil
	}

	s.gen++
	gen := s.gen
	s.pending[productID] = gen
	s.mu.Unlock()

	var err error
	if add {
		err = s.remote.Add(ctx, s.identity.UserID, productID)
	} else {
		err = s.remote.Remove(ctx, s.identity.UserID, productID)
	}

	s.mu.Lock()
	latest := s.pending[productID] == gen
	if latest {
		delete(s.pending, productID)
	}
	if err != nil && latest {
		if add {
			s.set.Remove(productID)
		} else {
			s.set.Add(productID)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.FavoriteMutation(op, "rolled_back")
		s.log.Warnf("Remote favorites %s of %s for user %s failed: %v", op, productID, s.identity.UserID, err)
		return fmt.Errorf("failed to %s favorite %s: %w", op, productID, err)
	}
	s.metrics.FavoriteMutation(op, "ok")
	s.publish(ctx, productID, add)
	return nil
}

// persistLocked snapshots the guest set. s.mu must be held.
func (s *favoritesService) persistLocked() {
	data, err := json.Marshal(s.set.IDs())
	if err != nil {
		s.log.Errorf("Failed to marshal favorites %s: %v", s.key, err)
		return
	}
	s.persister.schedule(data)
}

func (s *favoritesService) publish(ctx context.Context, productID string, favorite bool) {
	owner := s.identity.UserID
	if owner == "" {
		owner = s.key
	}
	event := FavoritesChangedEvent{Owner: owner, ProductID: productID, Favorite: favorite, At: s.clock.Now()}
	if err := s.publisher.Publish(ctx, nats.SubjectFavoritesChanged, event); err != nil {
		s.log.Warnf("Failed to publish favorites change for %s: %v", owner, err)
	}
}

// Refetch replaces the set with the remote list. In guest mode it is a no-op.
func (s *favoritesService) Refetch(ctx context.Context) error {
	if s.Mode() == FavoritesModeGuest {
		return nil
	}
	ids, err := s.remote.List(ctx, s.identity.UserID)
	if err != nil {
		return fmt.Errorf("failed to list favorites for user %s: %w", s.identity.UserID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := entity.NewFavoriteSet(ids...)
	// keep optimistic changes that the remote has not confirmed yet
	for id := range s.pending {
		if s.set.Contains(id) {
			fresh.Add(id)
		} else {
			fresh.Remove(id)
		}
	}
	s.set = fresh
	return nil
}

func (s *favoritesService) MergeGuest(ctx context.Context, ids []string) error {
	if s.Mode() == FavoritesModeGuest {
		return entity.ErrUnauthenticated
	}
	var errs []error
	for _, id := range ids {
		if err := s.AddToFavorites(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *favoritesService) ClearLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = entity.NewFavoriteSet()
	if s.persister != nil {
		s.persister.schedule(nil)
	}
}

func (s *favoritesService) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.persister.flush(ctx)
}
