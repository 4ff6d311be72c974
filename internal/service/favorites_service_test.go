package service

import (
	"context"
	"errors"
	"testing"
	"time"

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

var testUser = entity.Identity{UserID: "user-1", Email: "user@example.com"}

func newTestFavorites(t *testing.T, identity entity.Identity, local repository.KeyValueStore, remote repository.FavoritesStore, pub nats.MessagePublisher) FavoritesService {
	t.Helper()
	return NewFavoritesService(context.Background(), identity, local, remote, logger.NewNop(), pub, nil, clock.NewFixed(testNow),
		FavoritesServiceConfig{StorageKey: FavoritesStorageKey("s1"), WriteTimeout: time.Second})
}

func TestFavoritesService_GuestToggle(t *testing.T) {
	ctx := context.Background()
	svc := newTestFavorites(t, entity.Guest(), memory.NewKeyValueStore(), nil, nil)
	assert.Equal(t, FavoritesModeGuest, svc.Mode())

	on, err := svc.ToggleFavorite(ctx, "amz_1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, svc.IsFavorite("amz_1"))

	on, err = svc.ToggleFavorite(ctx, "amz_1")
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, svc.IsFavorite("amz_1"))
}

func TestFavoritesService_GuestPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	local := memory.NewKeyValueStore()
	svc := newTestFavorites(t, entity.Guest(), local, nil, nil)

	require.NoError(t, svc.AddToFavorites(ctx, "a"))
	require.NoError(t, svc.AddToFavorites(ctx, "b"))
	require.NoError(t, svc.AddToFavorites(ctx, "a"))
	require.NoError(t, svc.Flush(ctx))

	reloaded := newTestFavorites(t, entity.Guest(), local, nil, nil)
	assert.Equal(t, []string{"a", "b"}, reloaded.IDs())
}

func TestFavoritesService_GuestMalformedStorage(t *testing.T) {
	ctx := context.Background()
	local := memory.NewKeyValueStore()
	require.NoError(t, local.Set(ctx, FavoritesStorageKey("s1"), []byte(`{"a":1}`)))

	svc := newTestFavorites(t, entity.Guest(), local, nil, nil)
	assert.Empty(t, svc.IDs())
}

func TestFavoritesService_RejectsEmptyID(t *testing.T) {
	svc := newTestFavorites(t, entity.Guest(), memory.NewKeyValueStore(), nil, nil)
	_, err := svc.ToggleFavorite(context.Background(), "")
	assert.ErrorIs(t, err, entity.ErrEmptyProductID)
}

func TestFavoritesService_AuthenticatedLoadsRemote(t *testing.T) {
	remote := new(MockFavoritesStore)
	remote.On("List", mock.Anything, "user-1").Return([]string{"x", "y"}, nil).Once()

	svc := newTestFavorites(t, testUser, nil, remote, nil)

	assert.Equal(t, FavoritesModeAuthenticated, svc.Mode())
	assert.Equal(t, []string{"x", "y"}, svc.IDs())
	remote.AssertExpectations(t)
}

func TestFavoritesService_AuthenticatedRollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	remote := new(MockFavoritesStore)
	remote.On("List", mock.Anything, "user-1").Return([]string{"x"}, nil).Once()
	remote.On("Add", mock.Anything, "user-1", "y").Return(errors.New("network down")).Once()
	remote.On("Remove", mock.Anything, "user-1", "x").Return(errors.New("network down")).Once()

	svc := newTestFavorites(t, testUser, nil, remote, nil)

	on, err := svc.ToggleFavorite(ctx, "y")
	require.Error(t, err)
	assert.False(t, on)
	assert.False(t, svc.IsFavorite("y"))

	on, err = svc.ToggleFavorite(ctx, "x")
	require.Error(t, err)
	assert.True(t, on)
	assert.True(t, svc.IsFavorite("x"))
	remote.AssertExpectations(t)
}

func TestFavoritesService_AuthenticatedSuccessPublishes(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	remote := memory.NewFavoritesStore()

	svc := newTestFavorites(t, testUser, nil, remote, pub)
	require.NoError(t, svc.AddToFavorites(ctx, "z"))

	ids, err := remote.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, ids)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, nats.SubjectFavoritesChanged, msgs[0].Subject)
	event := msgs[0].Message.(FavoritesChangedEvent)
	assert.Equal(t, "user-1", event.Owner)
	assert.True(t, event.Favorite)
}

func TestFavoritesService_RefetchKeepsPendingChanges(t *testing.T) {
	ctx := context.Background()
	remote := new(MockFavoritesStore)
	remote.On("List", mock.Anything, "user-1").Return([]string{}, nil).Once()

	release := make(chan struct{})
	started := make(chan struct{})
	remote.On("Add", mock.Anything, "user-1", "slow").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	svc := newTestFavorites(t, testUser, nil, remote, nil)

	done := make(chan error, 1)
	go func() { done <- svc.AddToFavorites(ctx, "slow") }()
	<-started

	remote.On("List", mock.Anything, "user-1").Return([]string{"other"}, nil).Once()
	require.NoError(t, svc.Refetch(ctx))
	assert.True(t, svc.IsFavorite("slow"))
	assert.True(t, svc.IsFavorite("other"))

	close(release)
	require.NoError(t, <-done)
	assert.True(t, svc.IsFavorite("slow"))
}

func TestFavoritesService_RefetchGuestIsNoop(t *testing.T) {
	svc := newTestFavorites(t, entity.Guest(), memory.NewKeyValueStore(), nil, nil)
	assert.NoError(t, svc.Refetch(context.Background()))
}

func TestFavoritesService_MergeGuest(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewFavoritesStore()
	require.NoError(t, remote.Add(ctx, "user-1", "a"))

	svc := newTestFavorites(t, testUser, nil, remote, nil)
	require.NoError(t, svc.MergeGuest(ctx, []string{"a", "b"}))

	ids, err := remote.List(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.ElementsMatch(t, []string{"a", "b"}, svc.IDs())
}

func TestFavoritesService_MergeGuestRequiresAuth(t *testing.T) {
	svc := newTestFavorites(t, entity.Guest(), memory.NewKeyValueStore(), nil, nil)
	assert.ErrorIs(t, svc.MergeGuest(context.Background(), []string{"a"}), entity.ErrUnauthenticated)
}

func TestFavoritesService_ClearLocal(t *testing.T) {
	ctx := context.Background()
	local := memory.NewKeyValueStore()
	svc := newTestFavorites(t, entity.Guest(), local, nil, nil)
	require.NoError(t, svc.AddToFavorites(ctx, "a"))
	require.NoError(t, svc.Flush(ctx))

	svc.ClearLocal()
	require.NoError(t, svc.Flush(ctx))

	assert.Empty(t, svc.IDs())
	_, err := local.Get(ctx, FavoritesStorageKey("s1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
