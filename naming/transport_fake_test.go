package naming

import (
	"context"
	"sync"
)

// fakeTransport is a hand-rolled Transport for tests. Behavior is injected
// per call; counters record interactions.
type fakeTransport struct {
	mu sync.Mutex

	fetchFn      func(key ServiceKey) ([]Instance, int64, error)
	registerFn   func(ctx context.Context) error
	deregisterFn func(ctx context.Context) error
	heartbeatFn  func(ctx context.Context) error

	fetches     int
	registers   int
	deregisters int
	heartbeats  int
	opens       int
	closes      int

	streams map[ServiceKey]chan PushEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(map[ServiceKey]chan PushEvent)}
}

func (f *fakeTransport) Fetch(_ context.Context, key ServiceKey) ([]Instance, int64, error) {
	f.mu.Lock()
	f.fetches++
	fn := f.fetchFn
	f.mu.Unlock()
	if fn == nil {
		return nil, 0, nil
	}
	return fn(key)
}

func (f *fakeTransport) OpenPushStream(ctx context.Context, key ServiceKey) (<-chan PushEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	ch := make(chan PushEvent, 16)
	f.streams[key] = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if cur, ok := f.streams[key]; ok && cur == ch {
			delete(f.streams, key)
			close(ch)
		}
		f.mu.Unlock()
	}()
	return ch, nil
}

func (f *fakeTransport) ClosePushStream(ServiceKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) push(key ServiceKey, instances []Instance, rev int64) {
	f.mu.Lock()
	ch := f.streams[key]
	f.mu.Unlock()
	if ch != nil {
		ch <- PushEvent{Key: key, Instances: instances, Revision: rev}
	}
}

func (f *fakeTransport) RegisterInstance(ctx context.Context, _ *RegistrationDescriptor) error {
	f.mu.Lock()
	f.registers++
	fn := f.registerFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeTransport) DeregisterInstance(ctx context.Context, _ *RegistrationDescriptor) error {
	f.mu.Lock()
	f.deregisters++
	fn := f.deregisterFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeTransport) SendHeartbeat(ctx context.Context, _ *RegistrationDescriptor) error {
	f.mu.Lock()
	f.heartbeats++
	fn := f.heartbeatFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}

func (f *fakeTransport) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// instances builds a table of healthy enabled instances on sequential ports.
func testInstances(n int) []Instance {
	out := make([]Instance, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Instance{
			InstanceID: string(rune('a' + i)),
			IP:         "10.0.0.1",
			Port:       8000 + i,
			Weight:     1,
			Healthy:    true,
			Enabled:    true,
		})
	}
	return out
}
