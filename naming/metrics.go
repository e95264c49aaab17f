package naming

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nacos-group/nacos-serving-go/observability"
)

// Metrics holds the package's OpenTelemetry instruments. A nil *Metrics is
// valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	resolves         metric.Int64Counter
	failovers        metric.Int64Counter
	pushes           metric.Int64Counter
	emptyProtected   metric.Int64Counter
	heartbeats       metric.Int64Counter
	registerFailures metric.Int64Counter
	blacklisted      metric.Int64Counter
	stateChanges     metric.Int64Counter
}

// NewMetrics creates the instrument set on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := observability.Meter("naming")
	m := &Metrics{}
	var err error

	if m.resolves, err = meter.Int64Counter("naming.resolves",
		metric.WithDescription("Instance resolutions by outcome")); err != nil {
		return nil, fmt.Errorf("creating resolve counter: %w", err)
	}
	if m.failovers, err = meter.Int64Counter("naming.failovers",
		metric.WithDescription("Failed attempts that triggered failover")); err != nil {
		return nil, fmt.Errorf("creating failover counter: %w", err)
	}
	if m.pushes, err = meter.Int64Counter("naming.pushes_applied",
		metric.WithDescription("Registry pushes applied to the cache")); err != nil {
		return nil, fmt.Errorf("creating push counter: %w", err)
	}
	if m.emptyProtected, err = meter.Int64Counter("naming.empty_pushes_discarded",
		metric.WithDescription("Empty pushes discarded by empty-protection")); err != nil {
		return nil, fmt.Errorf("creating empty-protection counter: %w", err)
	}
	if m.heartbeats, err = meter.Int64Counter("naming.heartbeats",
		metric.WithDescription("Heartbeats sent by outcome")); err != nil {
		return nil, fmt.Errorf("creating heartbeat counter: %w", err)
	}
	if m.registerFailures, err = meter.Int64Counter("naming.register_failures",
		metric.WithDescription("Registrations that exhausted their retries")); err != nil {
		return nil, fmt.Errorf("creating register-failure counter: %w", err)
	}
	if m.blacklisted, err = meter.Int64Counter("naming.instances_blacklisted",
		metric.WithDescription("Instances added to the blacklist")); err != nil {
		return nil, fmt.Errorf("creating blacklist counter: %w", err)
	}
	if m.stateChanges, err = meter.Int64Counter("naming.registration_transitions",
		metric.WithDescription("Registration state transitions by target state")); err != nil {
		return nil, fmt.Errorf("creating state-change counter: %w", err)
	}
	return m, nil
}

func (m *Metrics) recordResolve(key ServiceKey, ok bool) {
	if m == nil {
		return
	}
	m.resolves.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("service", key.Grouped()),
			attribute.Bool("success", ok)))
}

func (m *Metrics) recordFailover(key ServiceKey) {
	if m == nil {
		return
	}
	m.failovers.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("service", key.Grouped())))
}

func (m *Metrics) recordPush(key ServiceKey, instances int) {
	if m == nil {
		return
	}
	m.pushes.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("service", key.Grouped()),
			attribute.Int("instances", instances)))
}

func (m *Metrics) recordEmptyProtected(key ServiceKey) {
	if m == nil {
		return
	}
	m.emptyProtected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("service", key.Grouped())))
}

func (m *Metrics) recordHeartbeat(ok bool) {
	if m == nil {
		return
	}
	m.heartbeats.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("success", ok)))
}

func (m *Metrics) recordRegisterFailure() {
	if m == nil {
		return
	}
	m.registerFailures.Add(context.Background(), 1)
}

func (m *Metrics) recordBlacklisted() {
	if m == nil {
		return
	}
	m.blacklisted.Add(context.Background(), 1)
}

func (m *Metrics) recordStateChange(next RegistrationState) {
	if m == nil {
		return
	}
	m.stateChanges.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("state", next.String())))
}
