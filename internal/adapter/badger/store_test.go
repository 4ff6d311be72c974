package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	_, err := s.Get(ctx, "favorites:s1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Set(ctx, "favorites:s1", []byte(`["a","b"]`)))
	got, err := s.Get(ctx, "favorites:s1")
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(got))

	require.NoError(t, s.Set(ctx, "favorites:s1", []byte(`["c"]`)))
	got, err = s.Get(ctx, "favorites:s1")
	require.NoError(t, err)
	assert.Equal(t, `["c"]`, string(got))

	require.NoError(t, s.Delete(ctx, "favorites:s1"))
	_, err = s.Get(ctx, "favorites:s1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Config{Path: dir}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "cart:s1", []byte(`{"items":[]}`)))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir}, logger.NewNop())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "cart:s1")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(got))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{}, logger.NewNop())
	assert.Error(t, err)
}
