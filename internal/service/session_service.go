package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const defaultSessionIdleTTL = 30 * time.Minute

// Session is the client state bound to one session ID: a cart and a favorites set
// whose mode follows the identity of the latest request.
type Session struct {
	ID string

	mu        sync.Mutex
	identity  entity.Identity
	cart      CartService
	favorites FavoritesService
	lastSeen  time.Time
	holds     int
}

func (s *Session) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.holds--
			s.mu.Unlock()
		})
	}
}

func (s *Session) Identity() entity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Cart() CartService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Session) Favorites() FavoritesService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites
}

func (s *Session) flush(ctx context.Context) error {
	s.mu.Lock()
	cart, favorites := s.cart, s.favorites
	s.mu.Unlock()
	return errors.Join(cart.Flush(ctx), favorites.Flush(ctx))
}

type SessionServiceConfig struct {
	IdleTTL      time.Duration
	WriteTimeout time.Duration
}

type SessionService struct {
	store     repository.KeyValueStore
	remote    repository.FavoritesStore
	publisher nats.MessagePublisher
	clock     clock.Clock
	log       logger.Logger
	metrics   *metrics.MetricsManager
	cfg       SessionServiceConfig

	mu       sync.Mutex
	sessions map[string]*Session
	// evicting holds swept sessions until their pending writes are flushed;
	// resolving one of them revives it instead of reloading from storage.
	evicting map[string]*Session
}

func NewSessionService(
	store repository.KeyValueStore,
	remote repository.FavoritesStore,
	publisher nats.MessagePublisher,
	log logger.Logger,
	m *metrics.MetricsManager,
	clk clock.Clock,
	cfg SessionServiceConfig,
) *SessionService {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultSessionIdleTTL
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &SessionService{
		store:     store,
		remote:    remote,
		publisher: publisher,
		clock:     clk,
		log:       log,
		metrics:   m,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
		evicting:  make(map[string]*Session),
	}
}

// NormalizeSessionID returns id when it is a valid UUID and a fresh one otherwise.
func NormalizeSessionID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewString()
}

// Resolve returns the session for sessionID, creating it when needed, and aligns
// its favorites mode with identity. A guest becoming authenticated has its guest
// favorites merged into the user's remote set once.
func (s *SessionService) Resolve(ctx context.Context, sessionID string, identity entity.Identity) *Session {
	return s.resolve(ctx, sessionID, identity, false)
}

// Acquire resolves the session like Resolve and holds it until release is
// called. Sweep never evicts a held session.
func (s *SessionService) Acquire(ctx context.Context, sessionID string, identity entity.Identity) (sess *Session, release func()) {
	sess = s.resolve(ctx, sessionID, identity, true)
	return sess, sess.releaser()
}

func (s *SessionService) resolve(ctx context.Context, sessionID string, identity entity.Identity, hold bool) *Session {
	sessionID = NormalizeSessionID(sessionID)

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		if evicted, found := s.evicting[sessionID]; found {
			sess = evicted
		} else {
			sess = &Session{ID: sessionID, identity: identity}
		}
		s.sessions[sessionID] = sess
		s.metrics.SetActiveSessions(len(s.sessions))
	}
	sess.mu.Lock()
	sess.lastSeen = s.clock.Now()
	if hold {
		sess.holds++
	}
	sess.mu.Unlock()
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cart == nil {
		sess.cart = NewCartService(ctx, s.store, s.log, s.publisher, s.metrics, s.clock, CartServiceConfig{
			StorageKey:   CartStorageKey(sessionID),
			WriteTimeout: s.cfg.WriteTimeout,
		})
		sess.favorites = s.newFavorites(ctx, sessionID, identity)
		return sess
	}

	if sess.identity == identity {
		return sess
	}

	previous := sess.favorites
	next := s.newFavorites(ctx, sessionID, identity)
	if !sess.identity.IsAuthenticated() && identity.IsAuthenticated() {
		guestIDs := previous.IDs()
		if len(guestIDs) > 0 {
			if err := next.MergeGuest(ctx, guestIDs); err != nil {
				s.log.Warnf("Merging guest favorites of session %s into user %s was partial: %v", sessionID, identity.UserID, err)
			}
		}
		previous.ClearLocal()
		s.log.Infof("Session %s signed in as user %s, merged %d guest favorites", sessionID, identity.UserID, len(guestIDs))
	}
	if err := previous.Flush(ctx); err != nil {
		s.log.Warnf("Flushing favorites of session %s failed: %v", sessionID, err)
	}
	sess.identity = identity
	sess.favorites = next
	return sess
}

func (s *SessionService) newFavorites(ctx context.Context, sessionID string, identity entity.Identity) FavoritesService {
	return NewFavoritesService(ctx, identity, s.store, s.remote, s.log, s.publisher, s.metrics, s.clock, FavoritesServiceConfig{
		StorageKey:   FavoritesStorageKey(sessionID),
		WriteTimeout: s.cfg.WriteTimeout,
	})
}

func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops unheld sessions idle for longer than the configured TTL after
// flushing their state.
func (s *SessionService) Sweep(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := sess.holds == 0 && sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if expired {
			idle = append(idle, sess)
			delete(s.sessions, id)
			s.evicting[id] = sess
		}
	}
	s.metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()

	for _, sess := range idle {
		if err := sess.flush(ctx); err != nil {
			s.log.Warnf("Flushing idle session %s failed: %v", sess.ID, err)
		}
	}

	s.mu.Lock()
	for _, sess := range idle {
		if s.evicting[sess.ID] == sess {
			delete(s.evicting, sess.ID)
		}
	}
	s.mu.Unlock()
	if len(idle) > 0 {
		s.log.Debugf("Swept %d idle sessions", len(idle))
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *SessionService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Close flushes the pending writes of every session.
func (s *SessionService) Close(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions)+len(s.evicting))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	for id, sess := range s.evicting {
		if s.sessions[id] != sess {
			all = append(all, sess)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range all {
		if err := sess.flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
