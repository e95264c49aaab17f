package naming

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

// Client is the entry point of the package: a configuration-constructed
// object tying the cache, selector, blacklist and registrar together.
// There is no package-level singleton; construct one and pass it around.
type Client struct {
	cfg       Config
	log       *logger.Logger
	metrics   *Metrics
	transport Transport
	cache     *Cache
	selector  *Selector
	blacklist *Blacklist
	registrar *registrar
	closed    atomic.Bool
}

type clientOptions struct {
	log       *logger.Logger
	metrics   *Metrics
	transport Transport
}

// Option customizes client construction.
type Option func(*clientOptions)

// WithLogger sets the logger. Defaults to the environment-derived logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *clientOptions) { o.log = log }
}

// WithMetrics enables instrumentation on the given instrument set.
func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithTransport injects a transport, bypassing the factory registry.
func WithTransport(t Transport) Option {
	return func(o *clientOptions) { o.transport = t }
}

// New builds a client from cfg. Defaults are applied and the configuration
// validated before any transport is constructed.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("naming: invalid configuration: %w", err)
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewFromEnv("naming")
	}

	transport := o.transport
	if transport == nil {
		var err error
		transport, err = NewTransport(cfg, o.log)
		if err != nil {
			return nil, fmt.Errorf("naming: %w", err)
		}
	}

	c := &Client{
		cfg:       cfg,
		log:       o.log.WithComponent("naming.client"),
		metrics:   o.metrics,
		transport: transport,
		cache:     NewCache(transport, cfg.Discovery, o.log, o.metrics),
		selector:  NewSelector(),
		blacklist: NewBlacklist(cfg.Blacklist, o.log, o.metrics),
	}
	if cfg.Registration.Enabled {
		c.registrar = newRegistrar(transport, cfg, o.log, o.metrics)
	}
	return c, nil
}

// Start performs eager registration when configured. A registration that
// exhausts its retries is logged and left in RegisterFailed; the hosting
// process keeps running undiscoverable rather than failing startup.
func (c *Client) Start(ctx context.Context) error {
	if c.registrar == nil || c.cfg.Registration.Mode != "eager" {
		return nil
	}
	if err := c.registrar.Register(ctx); err != nil {
		if stderrors.Is(err, ErrRegisterFailed) {
			c.log.Error("registration failed, continuing undiscoverable",
				logger.ErrorFields("register", err))
			return nil
		}
		return err
	}
	return nil
}

// Register triggers registration explicitly, including retrying out of
// RegisterFailed.
func (c *Client) Register(ctx context.Context) error {
	if c.registrar == nil {
		return fmt.Errorf("naming: registration is disabled")
	}
	return c.registrar.Register(ctx)
}

// RegistrationState returns the lifecycle state of the local instance.
// StateUnregistered is reported when registration is disabled.
func (c *Client) RegistrationState() RegistrationState {
	if c.registrar == nil {
		return StateUnregistered
	}
	return c.registrar.State()
}

// Resolve returns the current instance table for key, registering lazily
// first when configured.
func (c *Client) Resolve(ctx context.Context, key ServiceKey) (*InstanceTable, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	c.lazyRegister(ctx)
	return c.cache.Resolve(ctx, key)
}

func (c *Client) lazyRegister(ctx context.Context) {
	if c.registrar == nil || c.cfg.Registration.Mode != "lazy" {
		return
	}
	if err := c.registrar.EnsureRegistered(ctx); err != nil {
		c.log.Warn("lazy registration failed", logger.ErrorFields("register", err))
	}
}

// SelectInstance resolves key and picks one instance under the configured
// default strategy.
func (c *Client) SelectInstance(ctx context.Context, key ServiceKey) (Instance, error) {
	return c.SelectInstanceWith(ctx, key, c.cfg.Discovery.Strategy)
}

// SelectInstanceWith resolves key and picks one instance under strategy,
// honoring the blacklist.
func (c *Client) SelectInstanceWith(ctx context.Context, key ServiceKey, strategy Strategy) (Instance, error) {
	table, err := c.Resolve(ctx, key)
	if err != nil {
		c.metrics.recordResolve(key, false)
		return Instance{}, err
	}
	inst, err := c.selector.Select(table, strategy, c.exclusions(table, nil))
	c.metrics.recordResolve(key, err == nil)
	return inst, err
}

// exclusions merges the per-call exclusion set with blacklist-derived
// exclusions. When the blacklist would exclude every remaining candidate
// it is bypassed so a fully-blacklisted service still receives traffic.
func (c *Client) exclusions(table *InstanceTable, excluded map[string]struct{}) map[string]struct{} {
	combined := make(map[string]struct{}, len(excluded))
	for id := range excluded {
		combined[id] = struct{}{}
	}
	blacklistHit := false
	for _, inst := range table.Instances {
		if _, ok := combined[inst.InstanceID]; ok {
			continue
		}
		if inst.Eligible() && c.blacklist.Contains(inst.Address()) {
			combined[inst.InstanceID] = struct{}{}
			blacklistHit = true
		}
	}
	if !blacklistHit {
		return combined
	}
	for _, inst := range table.Instances {
		if !inst.Eligible() {
			continue
		}
		if _, ok := combined[inst.InstanceID]; !ok {
			return combined
		}
	}
	// Every candidate is blacklisted; fall back to the raw exclusion set.
	c.log.Warn("all candidates blacklisted, bypassing blacklist",
		logger.Fields(logger.FieldServiceKey, table.Key.String()))
	if excluded == nil {
		return map[string]struct{}{}
	}
	return excluded
}

// ResolveAndInvoke resolves key and invokes attempt against a selected
// instance, failing over to a different instance on error up to
// maxAttempts times. Failed instances are excluded for the remainder of
// the call and blacklisted. maxAttempts of 0 uses the configured default.
//
// This is the sole home of failover policy; request-library adapters call
// this one operation.
func (c *Client) ResolveAndInvoke(ctx context.Context, key ServiceKey, attempt func(Instance) error, maxAttempts int) error {
	_, err := Invoke(ctx, c, key, maxAttempts, func(inst Instance) (struct{}, error) {
		return struct{}{}, attempt(inst)
	})
	return err
}

// Invoke is the generic form of Client.ResolveAndInvoke for attempts that
// produce a value.
func Invoke[T any](ctx context.Context, c *Client, key ServiceKey, maxAttempts int, attempt func(Instance) (T, error)) (T, error) {
	var zero T
	if c.closed.Load() {
		return zero, ErrClientClosed
	}
	if maxAttempts <= 0 {
		maxAttempts = c.cfg.Discovery.MaxAttempts
	}

	excluded := make(map[string]struct{})
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		table, err := c.Resolve(ctx, key)
		if err != nil {
			return zero, err
		}

		inst, err := c.selector.Select(table, c.cfg.Discovery.Strategy, c.exclusions(table, excluded))
		if err != nil {
			c.metrics.recordResolve(key, false)
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %s: last attempt error: %v", ErrNoAvailableInstance, key.String(), lastErr)
			}
			return zero, fmt.Errorf("%w: %s", ErrNoAvailableInstance, key.String())
		}

		result, err := attempt(inst)
		if err == nil {
			c.metrics.recordResolve(key, true)
			return result, nil
		}
		lastErr = err
		excluded[inst.InstanceID] = struct{}{}
		c.blacklist.Add(inst)
		c.metrics.recordFailover(key)
		c.log.Warn("attempt failed, failing over",
			logger.Fields(
				logger.FieldServiceKey, key.String(),
				logger.FieldInstanceID, inst.InstanceID,
				logger.FieldAttempt, i+1,
				logger.FieldError, err.Error()))
	}
	c.metrics.recordResolve(key, false)
	return zero, fmt.Errorf("%w: %s: attempts exhausted: %v", ErrNoAvailableInstance, key.String(), lastErr)
}

// Subscribe registers a listener for table replacements on key and keeps
// the transport push stream open while subscriptions exist.
func (c *Client) Subscribe(key ServiceKey, listener Listener) (*Subscription, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.cache.Subscribe(key, listener)
}

// Shutdown tears the client down gracefully within the configured budget.
// See ShutdownCoordinator for the sequencing.
func (c *Client) Shutdown(ctx context.Context) error {
	return newShutdownCoordinator(c).run(ctx, c.cfg.Shutdown.Timeout)
}

// ShutdownWithTimeout is Shutdown with an explicit budget, for process
// exit hooks that do not carry a context.
func (c *Client) ShutdownWithTimeout(timeout time.Duration) error {
	return newShutdownCoordinator(c).run(context.Background(), timeout)
}
