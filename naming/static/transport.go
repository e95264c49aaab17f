package static

import (
	"context"
	"sync"

	"github.com/nacos-group/nacos-serving-go/errors"
	"github.com/nacos-group/nacos-serving-go/logger"
	"github.com/nacos-group/nacos-serving-go/naming"
)

func init() {
	naming.RegisterTransportFactory("static", func(cfg naming.Config, log *logger.Logger) (naming.Transport, error) {
		return NewTransport(), nil
	})
}

type stream struct {
	key    naming.ServiceKey
	events chan naming.PushEvent
}

// Transport is the in-memory backend. The zero value is not usable;
// construct with NewTransport.
type Transport struct {
	mu         sync.Mutex
	tables     map[naming.ServiceKey][]naming.Instance
	revisions  map[naming.ServiceKey]int64
	streams    map[*stream]struct{}
	registered map[string]*naming.RegistrationDescriptor
	heartbeats map[string]int
	closed     bool

	// RegisterErr, DeregisterErr and HeartbeatErr, when set, are returned
	// by the corresponding calls. Settable by tests to simulate faults.
	RegisterErr   error
	DeregisterErr error
	HeartbeatErr  error
}

var _ naming.Transport = (*Transport)(nil)

// NewTransport returns an empty in-memory transport.
func NewTransport() *Transport {
	return &Transport{
		tables:     make(map[naming.ServiceKey][]naming.Instance),
		revisions:  make(map[naming.ServiceKey]int64),
		streams:    make(map[*stream]struct{}),
		registered: make(map[string]*naming.RegistrationDescriptor),
		heartbeats: make(map[string]int),
	}
}

// SetInstances replaces the table for key, bumps its revision and notifies
// open streams.
func (t *Transport) SetInstances(key naming.ServiceKey, instances []naming.Instance) {
	t.mu.Lock()
	t.revisions[key]++
	rev := t.revisions[key]
	t.tables[key] = append([]naming.Instance(nil), instances...)
	t.mu.Unlock()
	t.fanOut(key, instances, rev)
}

// Push delivers an event with an explicit revision, leaving the stored
// revision counter untouched when rev is lower. Used to simulate
// out-of-order delivery.
func (t *Transport) Push(key naming.ServiceKey, instances []naming.Instance, rev int64) {
	t.mu.Lock()
	if rev > t.revisions[key] {
		t.revisions[key] = rev
		t.tables[key] = append([]naming.Instance(nil), instances...)
	}
	t.mu.Unlock()
	t.fanOut(key, instances, rev)
}

// fanOut delivers under the lock; stream closure also happens under it, so
// a send can never race a close. A full buffer means a stalled consumer,
// and the event is dropped rather than blocking every transport operation
// behind the lock.
func (t *Transport) fanOut(key naming.ServiceKey, instances []naming.Instance, rev int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.streams {
		if s.key != key {
			continue
		}
		select {
		case s.events <- naming.PushEvent{Key: key, Instances: instances, Revision: rev}:
		default:
		}
	}
}

// Fetch implements naming.Transport. Unknown keys report NotFound, like a
// registry that has never seen the service.
func (t *Transport) Fetch(_ context.Context, key naming.ServiceKey) ([]naming.Instance, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	instances, ok := t.tables[key]
	if !ok {
		return nil, 0, errors.NotFound("service", key.String())
	}
	return append([]naming.Instance(nil), instances...), t.revisions[key], nil
}

// OpenPushStream implements naming.Transport.
func (t *Transport) OpenPushStream(ctx context.Context, key naming.ServiceKey) (<-chan naming.PushEvent, error) {
	s := &stream{key: key, events: make(chan naming.PushEvent, 16)}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.Unavailable("open push stream")
	}
	t.streams[s] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		if _, ok := t.streams[s]; ok {
			delete(t.streams, s)
			close(s.events)
		}
		t.mu.Unlock()
	}()
	return s.events, nil
}

// ClosePushStream implements naming.Transport. Streams close through their
// context.
func (t *Transport) ClosePushStream(naming.ServiceKey) error { return nil }

// RegisterInstance implements naming.Transport.
func (t *Transport) RegisterInstance(_ context.Context, desc *naming.RegistrationDescriptor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.RegisterErr != nil {
		return t.RegisterErr
	}
	t.registered[desc.Instance.InstanceID] = desc
	return nil
}

// DeregisterInstance implements naming.Transport.
func (t *Transport) DeregisterInstance(_ context.Context, desc *naming.RegistrationDescriptor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.DeregisterErr != nil {
		return t.DeregisterErr
	}
	delete(t.registered, desc.Instance.InstanceID)
	return nil
}

// SendHeartbeat implements naming.Transport.
func (t *Transport) SendHeartbeat(_ context.Context, desc *naming.RegistrationDescriptor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.HeartbeatErr != nil {
		return t.HeartbeatErr
	}
	t.heartbeats[desc.Instance.InstanceID]++
	return nil
}

// Registered reports whether an instance ID currently holds a
// registration.
func (t *Transport) Registered(instanceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.registered[instanceID]
	return ok
}

// HeartbeatCount returns how many heartbeats an instance has sent.
func (t *Transport) HeartbeatCount(instanceID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.heartbeats[instanceID]
}

// Close implements naming.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for s := range t.streams {
		delete(t.streams, s)
		close(s.events)
	}
	return nil
}
