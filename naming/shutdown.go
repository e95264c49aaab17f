package naming

import (
	"context"
	"fmt"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

// shutdownCoordinator sequences graceful teardown: deregister the local
// instance within the time budget, stop the heartbeat, force-close all
// subscriptions and release the transport. Deregistration is best-effort;
// an elapsed budget yields ErrShutdownTimedOut, never an indefinite block.
type shutdownCoordinator struct {
	c   *Client
	log *logger.Logger
}

func newShutdownCoordinator(c *Client) *shutdownCoordinator {
	return &shutdownCoordinator{c: c, log: c.log.WithComponent("naming.shutdown")}
}

func (s *shutdownCoordinator) run(ctx context.Context, timeout time.Duration) error {
	if !s.c.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Info("graceful shutdown requested", logger.Fields("timeout", timeout.String()))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var timedOut error
	if s.c.registrar != nil {
		if s.c.cfg.Shutdown.DeregisterOnExit {
			timedOut = s.deregister(ctx)
		} else {
			s.c.registrar.cancelLifecycle()
			s.c.registrar.heartbeat.stop()
		}
	}

	s.c.blacklist.Close()
	s.c.cache.Close()
	if err := s.c.transport.Close(); err != nil {
		s.log.Warn("transport close failed", logger.ErrorFields("close", err))
	}

	if timedOut != nil {
		return timedOut
	}
	s.log.Info("graceful shutdown complete")
	return nil
}

// deregister awaits Deregistered or the budget, whichever first. The
// in-flight deregistration keeps running in the background on timeout; the
// process is free to exit regardless.
func (s *shutdownCoordinator) deregister(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.c.registrar.Deregister(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("deregistration failed", logger.ErrorFields("deregister", err))
		}
		return nil
	case <-ctx.Done():
		s.log.Warn("deregistration did not finish within the shutdown budget")
		return fmt.Errorf("%w: deregistration still pending", ErrShutdownTimedOut)
	}
}
