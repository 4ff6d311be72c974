package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const cartKeyPrefix = "cart:"

func CartStorageKey(sessionID string) string {
	return cartKeyPrefix + sessionID
}

type CartView struct {
	Items         []entity.CartItem                        `json:"items"`
	TotalItems    int                                      `json:"totalItems"`
	TotalPrice    float64                                  `json:"totalPrice"`
	ByMarketplace map[entity.Marketplace][]entity.CartItem `json:"byMarketplace"`
}

type CartUpdatedEvent struct {
	StorageKey string    `json:"storage_key"`
	Op         string    `json:"op"`
	ProductID  string    `json:"product_id,omitempty"`
	TotalItems int       `json:"total_items"`
	TotalPrice float64   `json:"total_price"`
	At         time.Time `json:"at"`
}

type CartService interface {
	AddToCart(ctx context.Context, product entity.Product, quantity int) error
	RemoveFromCart(ctx context.Context, productID string)
	UpdateQuantity(ctx context.Context, productID string, quantity int)
	ClearCart(ctx context.Context)

	Items() []entity.CartItem
	TotalItems() int
	TotalPrice() float64
	ItemsByMarketplace() map[entity.Marketplace][]entity.CartItem
	ItemsForMarketplace(m entity.Marketplace) []entity.CartItem
	IsInCart(productID string) bool
	ItemQuantity(productID string) int
	View() CartView

	Flush(ctx context.Context) error
}

type CartServiceConfig struct {
	StorageKey   string
	WriteTimeout time.Duration
}

type cartService struct {
	mu        sync.Mutex
	cart      *entity.Cart
	key       string
	persister *statePersister
	publisher nats.MessagePublisher
	clock     clock.Clock
	log       logger.Logger
	metrics   *metrics.MetricsManager
}

// NewCartService loads the persisted cart under cfg.StorageKey. Missing or unreadable
// data yields an empty cart.
func NewCartService(
	ctx context.Context,
	store repository.KeyValueStore,
	log logger.Logger,
	publisher nats.MessagePublisher,
	m *metrics.MetricsManager,
	clk clock.Clock,
	cfg CartServiceConfig,
) CartService {
	if publisher == nil {
		publisher = nats.NewNoopPublisher()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	s := &cartService{
		key:       cfg.StorageKey,
		persister: newStatePersister(store, cfg.StorageKey, "cart", cfg.WriteTimeout, log, m),
		publisher: publisher,
		clock:     clk,
		log:       log,
		metrics:   m,
	}
	s.cart = s.load(ctx, store)
	return s
}

func (s *cartService) load(ctx context.Context, store repository.KeyValueStore) *entity.Cart {
	data, err := store.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnf("Failed to load cart %s, starting empty: %v", s.key, err)
		}
		return entity.NewCart()
	}

	var cart entity.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		s.log.Warnf("Discarding malformed cart data under %s: %v", s.key, err)
		return entity.NewCart()
	}
	if cart.Sanitize() {
		s.log.Warnf("Dropped invalid items from stored cart %s", s.key)
	}
	return &cart
}

func (s *cartService) AddToCart(ctx context.Context, product entity.Product, quantity int) error {
	if product.ID == "" {
		return entity.ErrEmptyProductID
	}
	if quantity <= 0 {
		return entity.ErrInvalidQuantity
	}

	s.mu.Lock()
	if err := s.cart.AddItem(product, quantity, s.clock.Now()); err != nil {
		s.mu.Unlock()
		return err
	}
	event := s.commitLocked("add", product.ID)
	s.mu.Unlock()

	s.publish(ctx, event)
	s.log.Debugf("Added product %s (qty %d) to cart %s", product.ID, quantity, s.key)
	return nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, productID string) {
	s.mu.Lock()
	if !s.cart.RemoveItem(productID, s.clock.Now()) {
		s.mu.Unlock()
		return
	}
	event := s.commitLocked("remove", productID)
	s.mu.Unlock()

	s.publish(ctx, event)
}

func (s *cartService) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.mu.Lock()
	if !s.cart.UpdateItemQuantity(productID, quantity, s.clock.Now()) {
		s.mu.Unlock()
		return
	}
	op := "update"
	if quantity <= 0 {
		op = "remove"
	}
	event := s.commitLocked(op, productID)
	s.mu.Unlock()

	s.publish(ctx, event)
}

func (s *cartService) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.cart.Clear(s.clock.Now())
	event := s.commitLocked("clear", "")
	s.mu.Unlock()

	s.publish(ctx, event)
}

// commitLocked schedules persistence of the current cart. s.mu must be held.
func (s *cartService) commitLocked(op, productID string) CartUpdatedEvent {
	data, err := json.Marshal(s.cart)
	if err != nil {
		s.log.Errorf("Failed to marshal cart %s: %v", s.key, err)
	} else {
		s.persister.schedule(data)
	}
	s.metrics.CartMutation(op)
	return CartUpdatedEvent{
		StorageKey: s.key,
		Op:         op,
		ProductID:  productID,
		TotalItems: s.cart.TotalItems(),
		TotalPrice: s.cart.TotalPrice(),
		At:         s.cart.UpdatedAt,
	}
}

func (s *cartService) publish(ctx context.Context, event CartUpdatedEvent) {
	if err := s.publisher.Publish(ctx, nats.SubjectCartUpdated, event); err != nil {
		s.log.Warnf("Failed to publish cart update for %s: %v", s.key, err)
	}
}

func (s *cartService) Items() []entity.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone().Items
}

func (s *cartService) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItems()
}

func (s *cartService) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalPrice()
}

func (s *cartService) ItemsByMarketplace() map[entity.Marketplace][]entity.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemsByMarketplace()
}

func (s *cartService) ItemsForMarketplace(m entity.Marketplace) []entity.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.CartItem, 0)
	for _, item := range s.cart.Items {
		if item.Product.Marketplace == m {
			out = append(out, item)
		}
	}
	return out
}

func (s *cartService) IsInCart(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, _ := s.cart.GetItem(productID)
	return item != nil
}

func (s *cartService) ItemQuantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, _ := s.cart.GetItem(productID)
	if item == nil {
		return 0
	}
	return item.Quantity
}

func (s *cartService) View() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.cart.Clone()
	return CartView{
		Items:         snapshot.Items,
		TotalItems:    snapshot.TotalItems(),
		TotalPrice:    snapshot.TotalPrice(),
		ByMarketplace: snapshot.ItemsByMarketplace(),
	}
}

func (s *cartService) Flush(ctx context.Context) error {
	return s.persister.flush(ctx)
}
