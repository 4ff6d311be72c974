package service

import (
	"context"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const defaultWriteTimeout = 5 * time.Second

// statePersister writes snapshots of one key in the background. Writes are
// versioned: a snapshot is written only if no newer one has been scheduled by
// the time it reaches the store, so writes land in version order.
type statePersister struct {
	store        repository.KeyValueStore
	key          string
	storeName    string
	writeTimeout time.Duration
	log          logger.Logger
	metrics      *metrics.MetricsManager

	mu      sync.Mutex
	version uint64
	pending int
	idle    chan struct{}

	writeMu sync.Mutex
}

func newStatePersister(store repository.KeyValueStore, key, storeName string, writeTimeout time.Duration, log logger.Logger, m *metrics.MetricsManager) *statePersister {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &statePersister{
		store:        store,
		key:          key,
		storeName:    storeName,
		writeTimeout: writeTimeout,
		log:          log,
		metrics:      m,
	}
}

// schedule queues data for writing; nil data deletes the key.
func (p *statePersister) schedule(data []byte) {
	p.mu.Lock()
	p.version++
	v := p.version
	if p.pending == 0 {
		p.idle = make(chan struct{})
	}
	p.pending++
	p.mu.Unlock()

	go p.write(v, data)
}

func (p *statePersister) write(v uint64, data []byte) {
	defer p.done()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if v < p.latest() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	var err error
	if data == nil {
		err = p.store.Delete(ctx, p.key)
	} else {
		err = p.store.Set(ctx, p.key, data)
	}
	if err != nil {
		p.log.Errorf("Failed to persist %s state under key %s (version %d): %v", p.storeName, p.key, v, err)
		p.metrics.PersistFailed(p.storeName)
	}
}

func (p *statePersister) latest() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *statePersister) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.pending == 0 {
		close(p.idle)
	}
}

// flush blocks until every scheduled write has finished or ctx is done.
func (p *statePersister) flush(ctx context.Context) error {
	p.mu.Lock()
	if p.pending == 0 {
		p.mu.Unlock()
		return nil
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
