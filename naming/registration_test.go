package naming

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

func testRegistrar(t *testing.T, ft *fakeTransport, mutate func(*RegistrationConfig)) *registrar {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Registration.Enabled = true
	cfg.Registration.ServiceName = "checkout"
	cfg.Registration.Port = 9090
	cfg.Registration.RetryInterval = time.Millisecond
	cfg.Registration.HeartbeatInterval = time.Hour
	if mutate != nil {
		mutate(&cfg.Registration)
	}
	r := newRegistrar(ft, cfg, logger.Nop(), nil)
	t.Cleanup(r.heartbeat.stop)
	return r
}

func TestRegisterSucceedsAfterTransientFailures(t *testing.T) {
	ft := newFakeTransport()
	calls := 0
	ft.registerFn = func(context.Context) error {
		calls++
		if calls <= 2 {
			return fmt.Errorf("registry hiccup")
		}
		return nil
	}
	r := testRegistrar(t, ft, func(reg *RegistrationConfig) { reg.RetryTimes = 3 })

	if err := r.Register(context.Background()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := r.State(); got != StateRegistered {
		t.Errorf("state = %v, want registered", got)
	}
	if calls != 3 {
		t.Errorf("register attempts = %d, want 3", calls)
	}
}

func TestRegisterExhaustsRetries(t *testing.T) {
	ft := newFakeTransport()
	ft.registerFn = func(context.Context) error {
		return fmt.Errorf("registry down")
	}
	r := testRegistrar(t, ft, func(reg *RegistrationConfig) { reg.RetryTimes = 2 })

	err := r.Register(context.Background())
	if !stderrors.Is(err, ErrRegisterFailed) {
		t.Fatalf("err = %v, want ErrRegisterFailed", err)
	}
	if got := r.State(); got != StateRegisterFailed {
		t.Errorf("state = %v, want register_failed", got)
	}
	// retryTimes=2 means one initial attempt plus exactly two retries.
	if got := ft.registerCount(); got != 3 {
		t.Errorf("register attempts = %d, want 3", got)
	}
}

func TestRegisterRetriableFromFailedState(t *testing.T) {
	ft := newFakeTransport()
	fail := true
	ft.registerFn = func(context.Context) error {
		if fail {
			return fmt.Errorf("registry down")
		}
		return nil
	}
	r := testRegistrar(t, ft, func(reg *RegistrationConfig) { reg.RetryTimes = 0 })

	if err := r.Register(context.Background()); !stderrors.Is(err, ErrRegisterFailed) {
		t.Fatalf("first Register: %v", err)
	}

	fail = false
	if err := r.Register(context.Background()); err != nil {
		t.Fatalf("Register out of failed state: %v", err)
	}
	if got := r.State(); got != StateRegistered {
		t.Errorf("state = %v, want registered", got)
	}
}

func TestEnsureRegisteredOnlyTriggersFromUnregistered(t *testing.T) {
	ft := newFakeTransport()
	ft.registerFn = func(context.Context) error { return fmt.Errorf("down") }
	r := testRegistrar(t, ft, func(reg *RegistrationConfig) { reg.RetryTimes = 0 })

	if err := r.EnsureRegistered(context.Background()); !stderrors.Is(err, ErrRegisterFailed) {
		t.Fatalf("EnsureRegistered: %v", err)
	}
	attempts := ft.registerCount()

	// RegisterFailed does not re-trigger lazily.
	if err := r.EnsureRegistered(context.Background()); err != nil {
		t.Fatalf("second EnsureRegistered: %v", err)
	}
	if got := ft.registerCount(); got != attempts {
		t.Errorf("lazy trigger retried out of failed state: %d attempts", got)
	}
}

func TestDeregisterLifecycle(t *testing.T) {
	ft := newFakeTransport()
	r := testRegistrar(t, ft, nil)

	if err := r.Register(context.Background()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Deregister(context.Background()); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if got := r.State(); got != StateDeregistered {
		t.Errorf("state = %v, want deregistered", got)
	}
	ft.mu.Lock()
	deregisters := ft.deregisters
	ft.mu.Unlock()
	if deregisters != 1 {
		t.Errorf("deregister calls = %d, want 1", deregisters)
	}

	// Deregistered is terminal; nothing registers again.
	if err := r.Register(context.Background()); err != nil {
		t.Fatalf("Register after deregister: %v", err)
	}
	if got := r.State(); got != StateDeregistered {
		t.Errorf("state left terminal: %v", got)
	}
}

func TestDeregisterWithoutRegistration(t *testing.T) {
	ft := newFakeTransport()
	r := testRegistrar(t, ft, nil)

	if err := r.Deregister(context.Background()); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if got := r.State(); got != StateDeregistered {
		t.Errorf("state = %v, want deregistered", got)
	}
	ft.mu.Lock()
	deregisters := ft.deregisters
	ft.mu.Unlock()
	if deregisters != 0 {
		t.Errorf("transport deregister called for an unregistered instance")
	}
}

func TestDescriptorIdentity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Namespace = "prod"
	cfg.Registration.ServiceName = "checkout"
	cfg.Registration.GroupName = "payments"
	cfg.Registration.Port = 9090
	cfg.Registration.Weight = 2.5
	cfg.Registration.Metadata = map[string]string{"zone": "eu-1"}

	desc := newDescriptor(cfg)
	if desc.Key.Grouped() != "payments@@checkout" {
		t.Errorf("grouped name = %s", desc.Key.Grouped())
	}
	if desc.Key.Namespace != "prod" {
		t.Errorf("namespace = %s", desc.Key.Namespace)
	}
	if desc.Instance.InstanceID == "" {
		t.Error("instance ID not generated")
	}
	if desc.Instance.IP == "" {
		t.Error("advertised IP not resolved")
	}
	if !desc.Instance.Healthy || !desc.Instance.Enabled {
		t.Error("new instance must start healthy and enabled")
	}
	if desc.Instance.Weight != 2.5 {
		t.Errorf("weight = %v", desc.Instance.Weight)
	}
	if desc.Instance.Metadata["zone"] != "eu-1" {
		t.Errorf("metadata = %v", desc.Instance.Metadata)
	}
	if desc.Instance.Metadata["client.version"] == "" {
		t.Error("client version not advertised in metadata")
	}
}
