package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/debounce"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/tracer"
)

var ErrSourceTimeout = errors.New("product source timed out")

const (
	defaultDebounce     = 300 * time.Millisecond
	defaultFetchTimeout = 10 * time.Second
)

type QueryState string

const (
	QueryStateIdle    QueryState = "idle"
	QueryStateLoading QueryState = "loading"
	QueryStateReady   QueryState = "ready"
	QueryStateFailed  QueryState = "failed"
)

type QuerySnapshot struct {
	State     QueryState          `json:"state"`
	Results   []entity.Product    `json:"results"`
	Total     int                 `json:"total"`
	Err       error               `json:"-"`
	Error     string              `json:"error,omitempty"`
	Filters   entity.FilterConfig `json:"filters"`
	RequestID uint64              `json:"requestId"`
}

type QueryCoordinatorConfig struct {
	Debounce     time.Duration
	FetchTimeout time.Duration
}

// QueryCoordinator owns the search state of one client. Filter changes are
// debounced into fetches; only the most recently issued fetch may commit.
type QueryCoordinator struct {
	source  ProductSource
	log     logger.Logger
	metrics *metrics.MetricsManager
	tracer  trace.Tracer
	timeout time.Duration

	debouncer *debounce.Debouncer[entity.FilterConfig]

	mu          sync.Mutex
	filters     entity.FilterConfig
	lastIssued  *entity.FilterConfig
	state       QueryState
	results     []entity.Product
	total       int
	err         error
	latestID    uint64
	cancelFetch context.CancelFunc
	subs        map[int]func(QuerySnapshot)
	nextSubID   int
	closed      bool

	// notifyMu keeps subscriber callbacks in state order.
	notifyMu sync.Mutex

	baseCtx    context.Context
	baseCancel context.CancelFunc
	fetches    sync.WaitGroup
}

func NewQueryCoordinator(source ProductSource, log logger.Logger, m *metrics.MetricsManager, cfg QueryCoordinatorConfig) *QueryCoordinator {
	wait := cfg.Debounce
	if wait <= 0 {
		wait = defaultDebounce
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	c := &QueryCoordinator{
		source:     source,
		log:        log,
		metrics:    m,
		tracer:     tracer.Tracer(),
		timeout:    timeout,
		filters:    entity.DefaultFilterConfig(),
		state:      QueryStateIdle,
		results:    []entity.Product{},
		subs:       make(map[int]func(QuerySnapshot)),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	c.debouncer = debounce.New(wait, c.issue)
	return c
}

func (c *QueryCoordinator) SetQuery(query string) {
	c.UpdateFilters(func(f *entity.FilterConfig) { f.Query = query })
}

func (c *QueryCoordinator) SetFilters(filters entity.FilterConfig) {
	c.UpdateFilters(func(f *entity.FilterConfig) { *f = filters.Clone() })
}

// UpdateFilters applies fn to the pending configuration and schedules a debounced fetch.
func (c *QueryCoordinator) UpdateFilters(fn func(*entity.FilterConfig)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.filters)
	pending := c.filters.Clone()
	c.mu.Unlock()

	c.debouncer.Call(pending)
}

// Search fetches immediately, either the pending debounced change or the current filters.
func (c *QueryCoordinator) Search() {
	if c.debouncer.Flush() {
		return
	}
	c.mu.Lock()
	current := c.filters.Clone()
	c.mu.Unlock()
	c.issue(current)
}

// Retry re-issues the last fetched configuration.
func (c *QueryCoordinator) Retry() {
	c.mu.Lock()
	var f entity.FilterConfig
	if c.lastIssued != nil {
		f = c.lastIssued.Clone()
	} else {
		f = c.filters.Clone()
	}
	c.mu.Unlock()
	c.issue(f)
}

func (c *QueryCoordinator) issue(filters entity.FilterConfig) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.latestID++
	id := c.latestID
	ctx, cancel := context.WithTimeout(c.baseCtx, c.timeout)
	c.cancelFetch = cancel
	issued := filters.Clone()
	c.lastIssued = &issued
	c.state = QueryStateLoading
	c.fetches.Add(1)
	c.commitLocked()

	go c.fetch(ctx, cancel, id, filters)
}

type fetchOutcome struct {
	result entity.QueryResult
	err    error
}

func (c *QueryCoordinator) fetch(ctx context.Context, cancel context.CancelFunc, id uint64, filters entity.FilterConfig) {
	defer c.fetches.Done()
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "QueryCoordinator.fetch", trace.WithAttributes(
		attribute.Int64("request.id", int64(id)),
		attribute.String("query", filters.Query),
		attribute.String("source", c.source.Name()),
	))
	defer span.End()

	started := time.Now()
	done := make(chan fetchOutcome, 1)
	go func() {
		res, err := c.source.Fetch(ctx, filters)
		done <- fetchOutcome{result: res, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.err = fmt.Errorf("request %d: %w", id, ErrSourceTimeout)
	}
	c.metrics.ObserveFetch(c.source.Name(), started)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if id != c.latestID {
		c.mu.Unlock()
		c.metrics.StaleDiscarded()
		c.log.Debugf("Discarded stale response for request %d", id)
		span.SetAttributes(attribute.Bool("stale", true))
		return
	}

	c.cancelFetch = nil
	if out.err != nil {
		c.state = QueryStateFailed
		c.err = out.err
		reason := "error"
		if errors.Is(out.err, ErrSourceTimeout) {
			reason = "timeout"
		}
		c.metrics.FetchFailed(reason)
		span.RecordError(out.err)
		span.SetStatus(codes.Error, reason)
		c.log.Warnf("Product fetch %d failed: %v", id, out.err)
	} else {
		c.state = QueryStateReady
		c.err = nil
		c.results = out.result.Products
		if c.results == nil {
			c.results = []entity.Product{}
		}
		c.total = out.result.Total
		span.SetAttributes(attribute.Int("results", len(c.results)))
	}
	c.commitLocked()
}

// commitLocked releases c.mu and delivers the new snapshot to subscribers in order.
func (c *QueryCoordinator) commitLocked() {
	snap := c.snapshotLocked()
	subs := make([]func(QuerySnapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *QueryCoordinator) snapshotLocked() QuerySnapshot {
	results := make([]entity.Product, len(c.results))
	copy(results, c.results)
	snap := QuerySnapshot{
		State:     c.state,
		Results:   results,
		Total:     c.total,
		Err:       c.err,
		RequestID: c.latestID,
	}
	if c.lastIssued != nil {
		snap.Filters = c.lastIssued.Clone()
	} else {
		snap.Filters = c.filters.Clone()
	}
	if c.err != nil {
		snap.Error = c.err.Error()
	}
	return snap
}

func (c *QueryCoordinator) Snapshot() QuerySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Filters returns the pending configuration, including changes not yet fetched.
func (c *QueryCoordinator) Filters() entity.FilterConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Clone()
}

// Subscribe registers fn for every state change. fn must not call back into the
// coordinator synchronously.
func (c *QueryCoordinator) Subscribe(fn func(QuerySnapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close cancels the pending debounce and any in-flight fetch and waits for fetch goroutines.
func (c *QueryCoordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.mu.Unlock()

	c.debouncer.Cancel()
	c.baseCancel()
	c.fetches.Wait()
}
