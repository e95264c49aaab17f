package naming

import (
	"context"
	"fmt"

	"github.com/nacos-group/nacos-serving-go/logger"
)

// PushEvent is one registry notification carrying the full instance list
// for a service key. Revision is the registry's ordering token; transports
// without one leave it zero and the cache substitutes a receive counter.
type PushEvent struct {
	Key       ServiceKey
	Instances []Instance
	Revision  int64
}

// Transport abstracts the wire protocol to the registry. Implementations
// live in naming/nacoshttp, naming/consul and naming/static.
//
// All calls perform network round trips bounded by the caller's context.
type Transport interface {
	// Fetch retrieves the current instance list for a key, used for cold
	// resolves before any push stream is open.
	Fetch(ctx context.Context, key ServiceKey) ([]Instance, int64, error)

	// OpenPushStream subscribes to updates for a key. The returned channel
	// is closed when the stream terminates; the stream is bound to ctx.
	OpenPushStream(ctx context.Context, key ServiceKey) (<-chan PushEvent, error)

	// ClosePushStream releases server-side resources for a key's stream.
	ClosePushStream(key ServiceKey) error

	// RegisterInstance registers the local instance.
	RegisterInstance(ctx context.Context, desc *RegistrationDescriptor) error

	// DeregisterInstance removes the local instance.
	DeregisterInstance(ctx context.Context, desc *RegistrationDescriptor) error

	// SendHeartbeat signals liveness for an ephemeral registration.
	SendHeartbeat(ctx context.Context, desc *RegistrationDescriptor) error

	// Close releases all transport resources.
	Close() error
}

// TransportFactory creates a Transport from a Config. Backend packages
// register themselves (typically in an init function) to become selectable
// through Config.Transport.
type TransportFactory func(cfg Config, log *logger.Logger) (Transport, error)

var transportFactories = make(map[string]TransportFactory)

// RegisterTransportFactory registers a transport backend factory under the
// given name.
func RegisterTransportFactory(name string, f TransportFactory) {
	transportFactories[name] = f
}

// NewTransport instantiates the backend selected by cfg.Transport.
func NewTransport(cfg Config, log *logger.Logger) (Transport, error) {
	f, ok := transportFactories[cfg.Transport]
	if !ok {
		return nil, fmt.Errorf("unsupported naming transport %q (not registered)", cfg.Transport)
	}
	return f(cfg, log)
}
