package naming

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

// Listener observes applied table replacements for a subscribed key.
// Listeners are invoked outside the cache's locks and must not block.
type Listener func(key ServiceKey, table *InstanceTable)

// serviceState is the cache's per-key slot: the snapshot entry, the
// subscription set and the push-stream lifetime.
type serviceState struct {
	entry        tableEntry
	subs         map[*Subscription]struct{}
	streamCancel context.CancelFunc
}

// Cache owns the mapping from service key to instance table and the
// subscription bookkeeping that keeps transport push streams open.
//
// OnPush is the only table writer and is serialized per key; Resolve
// readers load snapshots without blocking writers.
type Cache struct {
	transport       Transport
	log             *logger.Logger
	metrics         *Metrics
	emptyProtection bool
	resolveTimeout  time.Duration
	cacheTTL        time.Duration

	mu       sync.Mutex
	services map[ServiceKey]*serviceState
	closed   bool

	streamCtx    context.Context
	streamCancel context.CancelFunc
	wg           sync.WaitGroup
}

// NewCache builds a cache over the given transport. metrics may be nil.
func NewCache(transport Transport, cfg DiscoveryConfig, log *logger.Logger, metrics *Metrics) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		transport:       transport,
		log:             log.WithComponent("naming.cache"),
		metrics:         metrics,
		emptyProtection: cfg.EmptyProtection,
		resolveTimeout:  cfg.ResolveTimeout,
		cacheTTL:        cfg.CacheTTL,
		services:        make(map[ServiceKey]*serviceState),
		streamCtx:       ctx,
		streamCancel:    cancel,
	}
}

func (c *Cache) state(key ServiceKey) *serviceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[key]
	if !ok {
		s = &serviceState{subs: make(map[*Subscription]struct{})}
		c.services[key] = s
	}
	return s
}

// Resolve returns the current table for key, fetching from the transport
// on a cold key. A cached table is reused while a push stream is open, or
// within the configured TTL otherwise.
func (c *Cache) Resolve(ctx context.Context, key ServiceKey) (*InstanceTable, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.mu.Unlock()

	s := c.state(key)
	if t := s.entry.snapshot(); t != nil && c.fresh(s, t) {
		return t, nil
	}
	return c.coldFetch(ctx, key, s)
}

// fresh reports whether a snapshot may be served without a round trip.
func (c *Cache) fresh(s *serviceState, t *InstanceTable) bool {
	c.mu.Lock()
	streaming := s.streamCancel != nil
	c.mu.Unlock()
	if streaming || c.cacheTTL <= 0 {
		return true
	}
	return time.Since(t.LastUpdatedAt) < c.cacheTTL
}

func (c *Cache) coldFetch(ctx context.Context, key ServiceKey, s *serviceState) (*InstanceTable, error) {
	if c.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.resolveTimeout)
		defer cancel()
	}

	instances, revision, err := c.transport.Fetch(ctx, key)
	if err != nil {
		cerr := classifyTransportErr("fetch "+key.String(), err)
		// A registry that reports the service gone surfaces as not-found;
		// only transient faults fall back to the stale snapshot.
		if stderrors.Is(cerr, ErrServiceNotFound) {
			return nil, cerr
		}
		if t := s.entry.snapshot(); t != nil {
			c.log.Warn("serving stale table after failed fetch",
				logger.Fields(logger.FieldServiceKey, key.String(), logger.FieldError, err.Error()))
			return t, nil
		}
		return nil, cerr
	}

	table, applied := s.entry.replace(key, instances, revision)
	if applied {
		c.metrics.recordPush(key, len(instances))
	}
	return table, nil
}

// OnPush applies one registry notification. Empty lists are discarded when
// empty-protection is on and a non-empty prior table exists; stale
// revisions are dropped by the table's monotonic-revision guard.
func (c *Cache) OnPush(key ServiceKey, instances []Instance, revision int64) {
	s := c.state(key)

	if len(instances) == 0 && c.emptyProtection {
		if cur := s.entry.snapshot(); cur != nil && !cur.Empty() {
			c.log.Warn("discarding empty push, keeping last non-empty table",
				logger.Fields(
					logger.FieldServiceKey, key.String(),
					logger.FieldRevision, revision,
					"held_instances", len(cur.Instances)))
			c.metrics.recordEmptyProtected(key)
			return
		}
	}

	table, applied := s.entry.replace(key, instances, revision)
	if !applied {
		c.log.Debug("dropping stale push",
			logger.Fields(logger.FieldServiceKey, key.String(), logger.FieldRevision, revision))
		return
	}

	c.metrics.recordPush(key, len(instances))
	c.log.Debug("applied push",
		logger.Fields(
			logger.FieldServiceKey, key.String(),
			logger.FieldRevision, table.Revision,
			"instances", len(table.Instances)))
	c.notify(s, key, table)
}

func (c *Cache) notify(s *serviceState, key ServiceKey, table *InstanceTable) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for sub := range s.subs {
		if sub.listener != nil {
			listeners = append(listeners, sub.listener)
		}
	}
	c.mu.Unlock()
	for _, l := range listeners {
		l(key, table)
	}
}

// Subscription is a live interest registration for one service key.
type Subscription struct {
	key      ServiceKey
	listener Listener
	cache    *Cache
	once     sync.Once
}

// Key returns the subscribed service key.
func (s *Subscription) Key() ServiceKey { return s.key }

// Unsubscribe releases the subscription. The push stream for the key is
// closed when the last subscription is released. Safe to call twice.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() { err = s.cache.unsubscribe(s) })
	return err
}

// Subscribe registers interest in key. The transport push stream is opened
// on the 0 to 1 subscriber transition. listener may be nil when the caller
// only wants the stream kept open.
func (c *Cache) Subscribe(key ServiceKey, listener Listener) (*Subscription, error) {
	s := c.state(key)
	sub := &Subscription{key: key, listener: listener, cache: c}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	first := len(s.subs) == 0
	s.subs[sub] = struct{}{}
	c.mu.Unlock()

	if !first {
		return sub, nil
	}

	if err := c.openStream(key, s); err != nil {
		c.mu.Lock()
		delete(s.subs, sub)
		c.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

func (c *Cache) openStream(key ServiceKey, s *serviceState) error {
	ctx, cancel := context.WithCancel(c.streamCtx)
	events, err := c.transport.OpenPushStream(ctx, key)
	if err != nil {
		cancel()
		return classifyTransportErr("open push stream "+key.String(), err)
	}

	c.mu.Lock()
	s.streamCancel = cancel
	c.mu.Unlock()

	c.log.Info("push stream opened", logger.Fields(logger.FieldServiceKey, key.String()))
	c.wg.Add(1)
	go c.consume(key, events)
	return nil
}

// consume drains one key's push stream. A terminated stream leaves the
// cached table intact; disconnects never clear the view.
func (c *Cache) consume(key ServiceKey, events <-chan PushEvent) {
	defer c.wg.Done()
	for ev := range events {
		c.OnPush(ev.Key, ev.Instances, ev.Revision)
	}
	c.log.Debug("push stream ended", logger.Fields(logger.FieldServiceKey, key.String()))
}

func (c *Cache) unsubscribe(sub *Subscription) error {
	c.mu.Lock()
	s, ok := c.services[sub.key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(s.subs, sub)
	last := len(s.subs) == 0
	cancel := s.streamCancel
	if last {
		s.streamCancel = nil
	}
	c.mu.Unlock()

	if !last || cancel == nil {
		return nil
	}
	cancel()
	if err := c.transport.ClosePushStream(sub.key); err != nil {
		return fmt.Errorf("naming: close push stream %s: %w", sub.key.String(), err)
	}
	c.log.Info("push stream closed", logger.Fields(logger.FieldServiceKey, sub.key.String()))
	return nil
}

// Close force-releases all subscriptions and push streams. Tables remain
// readable until the process exits.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	keys := make([]ServiceKey, 0, len(c.services))
	for key, s := range c.services {
		if s.streamCancel != nil {
			keys = append(keys, key)
			s.streamCancel = nil
		}
		s.subs = make(map[*Subscription]struct{})
	}
	c.mu.Unlock()

	c.streamCancel()
	for _, key := range keys {
		if err := c.transport.ClosePushStream(key); err != nil {
			c.log.Warn("failed to close push stream",
				logger.Fields(logger.FieldServiceKey, key.String(), logger.FieldError, err.Error()))
		}
	}
	c.wg.Wait()
}
