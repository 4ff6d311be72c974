package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/email"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

var ErrAlertNotOwned = errors.New("alert belongs to another user")

type AlertTriggeredEvent struct {
	AlertID     string    `json:"alert_id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	TargetPrice float64   `json:"target_price"`
	Price       float64   `json:"price"`
	At          time.Time `json:"at"`
}

type AlertService interface {
	Create(ctx context.Context, identity entity.Identity, product entity.Product, target float64) (*entity.PriceAlert, error)
	List(ctx context.Context, userID string) ([]entity.PriceAlert, error)
	Delete(ctx context.Context, userID, alertID string) error
	// Evaluate triggers every armed alert whose product is priced at or below target.
	Evaluate(ctx context.Context, products []entity.Product) (int, error)
}

type alertService struct {
	repo      repository.AlertRepository
	notifier  email.EmailSender
	publisher nats.MessagePublisher
	clock     clock.Clock
	log       logger.Logger
	metrics   *metrics.MetricsManager
}

func NewAlertService(
	repo repository.AlertRepository,
	notifier email.EmailSender,
	publisher nats.MessagePublisher,
	log logger.Logger,
	m *metrics.MetricsManager,
	clk clock.Clock,
) AlertService {
	if publisher == nil {
		publisher = nats.NewNoopPublisher()
	}
	if notifier == nil {
		notifier = email.NewNoopSender(log)
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &alertService{repo: repo, notifier: notifier, publisher: publisher, clock: clk, log: log, metrics: m}
}

func (s *alertService) Create(ctx context.Context, identity entity.Identity, product entity.Product, target float64) (*entity.PriceAlert, error) {
	alert, err := entity.NewPriceAlert(identity, product, target, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to save alert for product %s: %w", product.ID, err)
	}
	s.log.Infof("Price alert %s created for user %s on product %s at %.2f", alert.ID, identity.UserID, product.ID, target)
	return alert, nil
}

func (s *alertService) List(ctx context.Context, userID string) ([]entity.PriceAlert, error) {
	alerts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for user %s: %w", userID, err)
	}
	return alerts, nil
}

func (s *alertService) Delete(ctx context.Context, userID, alertID string) error {
	alert, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		return fmt.Errorf("failed to get alert %s: %w", alertID, err)
	}
	if alert.UserID != userID {
		return ErrAlertNotOwned
	}
	if err := s.repo.Delete(ctx, alertID); err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", alertID, err)
	}
	return nil
}

func (s *alertService) Evaluate(ctx context.Context, products []entity.Product) (int, error) {
	alerts, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active alerts: %w", err)
	}

	prices := make(map[string]entity.Product, len(products))
	for _, p := range products {
		prices[p.ID] = p
	}

	triggered := 0
	now := s.clock.Now()
	for i := range alerts {
		alert := &alerts[i]
		product, ok := prices[alert.ProductID]
		if !ok || !alert.ShouldTrigger(product.Price) {
			continue
		}

		alert.MarkTriggered(now)
		if err := s.repo.Update(ctx, alert); err != nil {
			s.log.Errorf("Failed to mark alert %s triggered: %v", alert.ID, err)
			continue
		}
		triggered++
		s.metrics.AlertTriggered()
		s.notify(ctx, alert, product)
	}
	return triggered, nil
}

func (s *alertService) notify(ctx context.Context, alert *entity.PriceAlert, product entity.Product) {
	event := AlertTriggeredEvent{
		AlertID:     alert.ID,
		UserID:      alert.UserID,
		ProductID:   alert.ProductID,
		TargetPrice: alert.TargetPrice,
		Price:       product.Price,
		At:          *alert.TriggeredAt,
	}
	if err := s.publisher.Publish(ctx, nats.SubjectAlertTriggered, event); err != nil {
		s.log.Warnf("Failed to publish alert %s: %v", alert.ID, err)
	}

	if alert.Email == "" {
		return
	}
	subject := fmt.Sprintf("Price drop: %s", product.Title)
	text := fmt.Sprintf("%s is now %.2f %s on %s (your target: %.2f).\n%s",
		product.Title, product.Price, product.Currency, product.Marketplace, alert.TargetPrice, product.ProductURL)
	body := fmt.Sprintf("<p><b>%s</b> is now <b>%.2f %s</b> on %s (your target: %.2f).</p><p><a href=\"%s\">View product</a></p>",
		html.EscapeString(product.Title), product.Price, product.Currency, product.Marketplace, alert.TargetPrice, html.EscapeString(product.ProductURL))
	if err := s.notifier.Send(ctx, []string{alert.Email}, subject, body, text); err != nil {
		s.log.Warnf("Failed to e-mail alert %s to %s: %v", alert.ID, alert.Email, err)
	}
}
