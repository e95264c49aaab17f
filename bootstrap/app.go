package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nacos-group/nacos-serving-go/component"
	"github.com/nacos-group/nacos-serving-go/logger"
	"github.com/nacos-group/nacos-serving-go/version"
)

// App runs a service's lifecycle: start components, report readiness, wait
// for a shutdown signal, stop components in reverse order.
type App struct {
	Name       string
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	onStart         []Hook
	onReady         []Hook
	onStop          []Hook
}

// New creates an application. The logger defaults to the
// environment-derived logger tagged with the service name.
func New(name string, opts ...Option) *App {
	o := resolveOptions(opts)
	log := o.logger
	if log == nil {
		log = logger.NewFromEnv(name)
	}
	app := &App{
		Name:            name,
		Logger:          log,
		Components:      component.NewRegistry(log),
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	return app
}

// RegisterComponent adds a component. Register dependencies first;
// components start in registration order and stop in reverse.
func (a *App) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// ReadyCheck verifies that every registered component reports healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run executes the full lifecycle: start components, run OnStart hooks,
// ready-check, run OnReady hooks, block until a shutdown signal, then stop
// everything within the graceful timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

func (a *App) startup(ctx context.Context) error {
	a.Logger.Info("starting application", logger.Fields(
		"name", a.Name, "version", version.Short()))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("starting components: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("on-start hook: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		// Degraded components (an undiscoverable registration, say) are
		// reported but do not block startup.
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("on-ready hook: %w", err)
	}
	return nil
}

// WaitForSignal blocks until SIGINT/SIGTERM or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown stops the application without waiting for a signal.
func (a *App) Shutdown(context.Context) error {
	return a.stop()
}

func (a *App) stop() error {
	a.Logger.Info("shutting down", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var firstErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("on-stop hook failed", logger.ErrorFields("stop", err))
		firstErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("component shutdown reported errors", logger.ErrorFields("stop", err))
		if firstErr == nil {
			firstErr = err
		}
	}
	a.Logger.Info("shutdown complete")
	return firstErr
}
