package naming

import (
	"context"
	"sync"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

// heartbeatManager sends periodic liveness signals while the registrar is
// in Registered. Consecutive failures up to the configured threshold
// escalate into exactly one re-registration; any success resets the count.
type heartbeatManager struct {
	reg       *registrar
	interval  time.Duration
	threshold int
	log       *logger.Logger
	metrics   *Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newHeartbeatManager(reg *registrar, cfg RegistrationConfig, log *logger.Logger, metrics *Metrics) *heartbeatManager {
	return &heartbeatManager{
		reg:       reg,
		interval:  cfg.HeartbeatInterval,
		threshold: cfg.HeartbeatFailureThreshold,
		log:       log.WithComponent("naming.heartbeat"),
		metrics:   metrics,
	}
}

// start launches the ticker loop. Idempotent while running.
func (h *heartbeatManager) start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.loop(ctx, h.done)
}

// stop cancels the ticker loop and waits for it to exit. Safe to call when
// not running, and from within the loop's own escalation path.
func (h *heartbeatManager) stop() {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.cancel = nil
	h.done = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// forget releases the manager slot when the loop exits on its own, so a
// later start() launches a fresh loop. No-op when stop() already claimed
// the slot.
func (h *heartbeatManager) forget(done chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != done {
		return
	}
	h.cancel()
	h.cancel = nil
	h.done = nil
}

func (h *heartbeatManager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer h.forget(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if h.reg.State() != StateRegistered {
			return
		}

		if err := h.reg.sendHeartbeat(ctx); err != nil {
			failures++
			h.metrics.recordHeartbeat(false)
			h.log.Warn("heartbeat failed",
				logger.Fields("consecutive_failures", failures, logger.FieldError, err.Error()))
			if failures >= h.threshold {
				// Escalate once; the registrar stops this loop and restarts
				// the heartbeat after a successful re-register.
				go h.reg.escalate()
				return
			}
			continue
		}
		failures = 0
		h.metrics.recordHeartbeat(true)
	}
}
