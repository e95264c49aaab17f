package naming

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nacos-group/nacos-serving-go/logger"
	"github.com/nacos-group/nacos-serving-go/resilience"
	"github.com/nacos-group/nacos-serving-go/version"
)

// RegistrationState is the lifecycle status of the local instance. Exactly
// one exists per client; only the registrar writes it.
type RegistrationState int32

const (
	StateUnregistered RegistrationState = iota
	StateRegistering
	StateRegistered
	StateRegisterFailed
	StateDeregistering
	StateDeregistered
)

func (s RegistrationState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateRegisterFailed:
		return "register_failed"
	case StateDeregistering:
		return "deregistering"
	case StateDeregistered:
		return "deregistered"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// RegistrationDescriptor is the local instance plus its lifecycle policy.
// Immutable after construction except Instance.Healthy/Enabled, which the
// heartbeat path may flip.
type RegistrationDescriptor struct {
	Key       ServiceKey
	Instance  Instance
	Ephemeral bool

	RetryTimes    int
	RetryInterval time.Duration
	BackoffFactor float64

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// newDescriptor builds the descriptor from configuration, generating an
// instance ID and resolving the advertised IP when unset.
func newDescriptor(cfg Config) *RegistrationDescriptor {
	reg := cfg.Registration
	ip := reg.IP
	if ip == "" {
		ip = localIP()
	}
	metadata := make(map[string]string, len(reg.Metadata)+1)
	for k, v := range reg.Metadata {
		metadata[k] = v
	}
	metadata["client.version"] = version.Short()
	return &RegistrationDescriptor{
		Key: NewServiceKey(reg.ServiceName, reg.GroupName, cfg.Namespace),
		Instance: Instance{
			InstanceID: uuid.NewString(),
			IP:         ip,
			Port:       reg.Port,
			Weight:     reg.Weight,
			Healthy:    true,
			Enabled:    true,
			Ephemeral:  reg.Ephemeral,
			Cluster:    reg.Cluster,
			Metadata:   metadata,
		},
		Ephemeral:         reg.Ephemeral,
		RetryTimes:        reg.RetryTimes,
		RetryInterval:     reg.RetryInterval,
		BackoffFactor:     reg.BackoffFactor,
		HeartbeatInterval: reg.HeartbeatInterval,
		HeartbeatTimeout:  reg.HeartbeatTimeout,
	}
}

// localIP returns the preferred outbound IP of this host. Falls back to
// loopback when no route is available.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// registrar drives the local instance through
// register, heartbeat and deregister. All transitions go through
// transition(), serialized on mu; State() reads are lock-free.
type registrar struct {
	transport Transport
	log       *logger.Logger
	metrics   *Metrics
	desc      *RegistrationDescriptor

	mu    sync.Mutex
	state atomic.Int32

	heartbeat *heartbeatManager

	// lifecycleCtx ends at Deregister; background re-registration stops
	// with it.
	lifecycleCtx    context.Context
	cancelLifecycle context.CancelFunc
}

func newRegistrar(transport Transport, cfg Config, log *logger.Logger, metrics *Metrics) *registrar {
	ctx, cancel := context.WithCancel(context.Background())
	r := &registrar{
		transport:       transport,
		log:             log.WithComponent("naming.registrar"),
		metrics:         metrics,
		desc:            newDescriptor(cfg),
		lifecycleCtx:    ctx,
		cancelLifecycle: cancel,
	}
	r.heartbeat = newHeartbeatManager(r, cfg.Registration, log, metrics)
	return r
}

// State returns the current lifecycle state without locking.
func (r *registrar) State() RegistrationState {
	return RegistrationState(r.state.Load())
}

// Descriptor exposes the advertised instance (for health endpoints).
func (r *registrar) Descriptor() *RegistrationDescriptor { return r.desc }

// transition moves the machine to next if the current state is one of from.
func (r *registrar) transition(next RegistrationState, from ...RegistrationState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := RegistrationState(r.state.Load())
	for _, f := range from {
		if cur == f {
			r.state.Store(int32(next))
			r.log.Info("registration state changed",
				logger.Fields(logger.FieldState, next.String(), "from", cur.String()))
			r.metrics.recordStateChange(next)
			return true
		}
	}
	return false
}

// Register drives Unregistered (or RegisterFailed) through Registering to
// Registered, retrying per the descriptor's policy. Exhaustion lands in
// RegisterFailed and returns ErrRegisterFailed; the caller keeps running.
func (r *registrar) Register(ctx context.Context) error {
	if !r.transition(StateRegistering, StateUnregistered, StateRegisterFailed, StateRegistered) {
		return nil
	}
	return r.registerLoop(ctx)
}

func (r *registrar) registerLoop(ctx context.Context) error {
	cfg := resilience.RetryConfig{
		MaxAttempts:    r.desc.RetryTimes + 1,
		InitialBackoff: r.desc.RetryInterval,
		MaxBackoff:     r.desc.RetryInterval * 16,
		BackoffFactor:  r.desc.BackoffFactor,
		RetryIf: func(err error) bool {
			return !stderrors.Is(err, context.Canceled)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			r.log.Warn("registration attempt failed, retrying",
				logger.Fields(
					logger.FieldAttempt, attempt,
					logger.FieldError, err.Error(),
					"backoff", backoff.String()))
		},
	}

	err := resilience.RetryFunc(ctx, cfg, func() error {
		return r.transport.RegisterInstance(ctx, r.desc)
	})
	if err != nil {
		r.transition(StateRegisterFailed, StateRegistering)
		r.metrics.recordRegisterFailure()
		return fmt.Errorf("%w: %s: %v", ErrRegisterFailed, r.desc.Key.String(), err)
	}

	if !r.transition(StateRegistered, StateRegistering) {
		// Shutdown raced the final attempt; the registration is abandoned.
		return nil
	}
	r.log.Info("instance registered",
		logger.Fields(
			logger.FieldServiceKey, r.desc.Key.String(),
			logger.FieldInstanceID, r.desc.Instance.InstanceID))
	// An explicit re-register leaves the previous loop winding down on the
	// state change; reclaim it before starting a fresh one.
	r.heartbeat.stop()
	r.heartbeat.start()
	return nil
}

// EnsureRegistered lazily triggers registration on first use. Only the
// Unregistered state triggers; RegisterFailed stays until an explicit
// Register call.
func (r *registrar) EnsureRegistered(ctx context.Context) error {
	if r.State() != StateUnregistered {
		return nil
	}
	return r.Register(ctx)
}

// escalate handles heartbeat-failure escalation. The registry entry is
// ephemeral and may have expired server-side, so a fresh register is
// issued from Registering.
func (r *registrar) escalate() {
	if !r.transition(StateRegistering, StateRegistered) {
		return
	}
	r.heartbeat.stop()
	r.log.Warn("heartbeat failures exceeded threshold, re-registering",
		logger.Fields(logger.FieldServiceKey, r.desc.Key.String()))
	if err := r.registerLoop(r.lifecycleCtx); err != nil {
		r.log.Error("re-registration failed", logger.ErrorFields("reregister", err))
	}
}

// Deregister drives the machine to Deregistered, best-effort. Callable
// from any live state; Deregistered is terminal.
func (r *registrar) Deregister(ctx context.Context) error {
	r.cancelLifecycle()
	r.heartbeat.stop()

	if !r.transition(StateDeregistering,
		StateRegistered, StateRegistering, StateRegisterFailed) {
		// Nothing was ever registered; finish the lifecycle anyway.
		r.transition(StateDeregistered, StateUnregistered, StateDeregistering)
		return nil
	}

	err := r.transport.DeregisterInstance(ctx, r.desc)
	r.transition(StateDeregistered, StateDeregistering)
	if err != nil {
		return classifyTransportErr("deregister "+r.desc.Key.String(), err)
	}
	r.log.Info("instance deregistered",
		logger.Fields(
			logger.FieldServiceKey, r.desc.Key.String(),
			logger.FieldInstanceID, r.desc.Instance.InstanceID))
	return nil
}

// sendHeartbeat issues one liveness signal, bounded by the descriptor's
// heartbeat timeout. A tick racing a state change is a no-op.
func (r *registrar) sendHeartbeat(ctx context.Context) error {
	if r.State() != StateRegistered {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.desc.HeartbeatTimeout)
	defer cancel()
	return r.transport.SendHeartbeat(ctx, r.desc)
}
