package memory

import (
	"context"
	"sync"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

// KeyValueStore keeps client state in process memory. Contents are lost on restart.
type KeyValueStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ repository.KeyValueStore = (*KeyValueStore)(nil)

func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{data: make(map[string][]byte)}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = v
	return nil
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// FavoritesStore is an in-process stand-in for the remote favorites table.
type FavoritesStore struct {
	mu    sync.RWMutex
	users map[string][]string
}

var _ repository.FavoritesStore = (*FavoritesStore)(nil)

func NewFavoritesStore() *FavoritesStore {
	return &FavoritesStore{users: make(map[string][]string)}
}

func (s *FavoritesStore) List(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.users[userID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (s *FavoritesStore) Add(ctx context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.users[userID] {
		if id == productID {
			return nil
		}
	}
	s.users[userID] = append(s.users[userID], productID)
	return nil
}

func (s *FavoritesStore) Remove(ctx context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.users[userID]
	for i, id := range ids {
		if id == productID {
			s.users[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}
