package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/memory"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

func TestAlertService_CreateValidates(t *testing.T) {
	ctx := context.Background()
	svc := NewAlertService(memory.NewAlertRepository(), nil, nil, logger.NewNop(), nil, clock.NewFixed(testNow))
	p := testProduct("amz_1", entity.MarketplaceAmazon, 100)

	_, err := svc.Create(ctx, entity.Guest(), p, 90)
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)

	_, err = svc.Create(ctx, testUser, p, 0)
	assert.ErrorIs(t, err, entity.ErrInvalidTargetPrice)

	alert, err := svc.Create(ctx, testUser, p, 90)
	require.NoError(t, err)
	assert.Equal(t, testNow, alert.CreatedAt)
	assert.True(t, alert.IsActive)

	alerts, err := svc.List(ctx, testUser.UserID)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestAlertService_DeleteChecksOwnership(t *testing.T) {
	ctx := context.Background()
	svc := NewAlertService(memory.NewAlertRepository(), nil, nil, logger.NewNop(), nil, clock.NewFixed(testNow))
	alert, err := svc.Create(ctx, testUser, testProduct("a", entity.MarketplaceAmazon, 10), 5)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "someone-else", alert.ID), ErrAlertNotOwned)
	assert.ErrorIs(t, svc.Delete(ctx, testUser.UserID, "missing"), repository.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, testUser.UserID, alert.ID))

	alerts, err := svc.List(ctx, testUser.UserID)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestAlertService_EvaluateTriggersOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAlertRepository()
	pub := &recordingPublisher{}
	sender := new(MockEmailSender)
	sender.On("Send", mock.Anything, []string{"user@example.com"}, "Price drop: Product cheap", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewAlertService(repo, sender, pub, logger.NewNop(), nil, clock.NewFixed(testNow))
	cheap := testProduct("cheap", entity.MarketplaceEbay, 100)
	pricey := testProduct("pricey", entity.MarketplaceAmazon, 100)
	_, err := svc.Create(ctx, testUser, cheap, 90)
	require.NoError(t, err)
	_, err = svc.Create(ctx, testUser, pricey, 50)
	require.NoError(t, err)

	cheap.Price = 85
	n, err := svc.Evaluate(ctx, []entity.Product{cheap, pricey})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Evaluate(ctx, []entity.Product{cheap, pricey})
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, nats.SubjectAlertTriggered, msgs[0].Subject)
	event := msgs[0].Message.(AlertTriggeredEvent)
	assert.Equal(t, "cheap", event.ProductID)
	assert.Equal(t, 85.0, event.Price)
	sender.AssertExpectations(t)

	alerts, err := svc.List(ctx, testUser.UserID)
	require.NoError(t, err)
	for _, a := range alerts {
		if a.ProductID == "cheap" {
			assert.True(t, a.Triggered)
			require.NotNil(t, a.TriggeredAt)
			assert.Equal(t, testNow, *a.TriggeredAt)
		} else {
			assert.False(t, a.Triggered)
		}
	}
}

func TestAlertService_EvaluateEscapesEmailBody(t *testing.T) {
	ctx := context.Background()
	sender := new(MockEmailSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything,
		mock.MatchedBy(func(body string) bool {
			return !strings.Contains(body, "<script>") && strings.Contains(body, "&lt;script&gt;")
		}), mock.Anything).Return(nil).Once()

	svc := NewAlertService(memory.NewAlertRepository(), sender, nil, logger.NewNop(), nil, clock.NewFixed(testNow))
	p := testProduct("x", entity.MarketplaceAmazon, 10)
	p.Title = "<script>alert(1)</script>"
	_, err := svc.Create(ctx, testUser, p, 20)
	require.NoError(t, err)

	n, err := svc.Evaluate(ctx, []entity.Product{p})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sender.AssertExpectations(t)
}
