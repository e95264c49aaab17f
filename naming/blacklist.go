package naming

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

// dialFunc opens a probe connection. Injectable for tests.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Blacklist tracks instances that recently failed a request. Entries expire
// after a TTL and are removed earlier when a background TCP probe succeeds.
// When every candidate for a resolve is blacklisted the blacklist stands
// aside entirely rather than blackholing the call.
type Blacklist struct {
	cfg     BlacklistConfig
	log     *logger.Logger
	metrics *Metrics
	dial    dialFunc

	mu      sync.Mutex
	expires map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBlacklist builds a blacklist and, when enabled, starts its probe loop.
func NewBlacklist(cfg BlacklistConfig, log *logger.Logger, metrics *Metrics) *Blacklist {
	b := &Blacklist{
		cfg:     cfg,
		log:     log.WithComponent("naming.blacklist"),
		metrics: metrics,
		expires: make(map[string]time.Time),
	}
	b.dial = (&net.Dialer{}).DialContext
	if cfg.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.done = make(chan struct{})
		go b.probeLoop(ctx)
	}
	return b
}

// Add blacklists an instance endpoint for the configured TTL.
func (b *Blacklist) Add(inst Instance) {
	if !b.cfg.Enabled {
		return
	}
	addr := inst.Address()
	b.mu.Lock()
	b.expires[addr] = time.Now().Add(b.cfg.TTL)
	b.mu.Unlock()
	b.metrics.recordBlacklisted()
	b.log.Warn("instance blacklisted",
		logger.Fields("address", addr, "ttl", b.cfg.TTL.String()))
}

// Contains reports whether an endpoint is currently blacklisted. Expired
// entries are purged on read.
func (b *Blacklist) Contains(addr string) bool {
	if !b.cfg.Enabled {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.expires[addr]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(b.expires, addr)
		return false
	}
	return true
}

// Len returns the number of live entries.
func (b *Blacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	n := 0
	for addr, exp := range b.expires {
		if now.After(exp) {
			delete(b.expires, addr)
			continue
		}
		n++
	}
	return n
}

// probeLoop periodically attempts a TCP connection to each blacklisted
// endpoint and removes entries that accept again.
func (b *Blacklist) probeLoop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		addrs := make([]string, 0, len(b.expires))
		now := time.Now()
		for addr, exp := range b.expires {
			if now.After(exp) {
				delete(b.expires, addr)
				continue
			}
			addrs = append(addrs, addr)
		}
		b.mu.Unlock()

		for _, addr := range addrs {
			if b.probe(ctx, addr) {
				b.mu.Lock()
				delete(b.expires, addr)
				b.mu.Unlock()
				b.log.Info("instance recovered from blacklist", logger.Fields("address", addr))
			}
		}
	}
}

func (b *Blacklist) probe(ctx context.Context, addr string) bool {
	b.mu.Lock()
	dial := b.dial
	b.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// setDial swaps the probe dialer. Used by tests.
func (b *Blacklist) setDial(dial dialFunc) {
	b.mu.Lock()
	b.dial = dial
	b.mu.Unlock()
}

// Close stops the probe loop.
func (b *Blacklist) Close() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	b.cancel = nil
}
