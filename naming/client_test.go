package naming

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/nacos-group/nacos-serving-go/logger"
)

func testClient(t *testing.T, ft *fakeTransport, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Registration.Enabled = false
	cfg.Blacklist.ProbeInterval = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, WithTransport(ft), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.ShutdownWithTimeout(time.Second) })
	return c
}

func fixedTable(n int) func(ServiceKey) ([]Instance, int64, error) {
	return func(ServiceKey) ([]Instance, int64, error) {
		return testInstances(n), 1, nil
	}
}

func TestResolveAndInvokeFailover(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(3)
	c := testClient(t, ft, nil)

	attempted := make([]string, 0, 3)
	result, err := Invoke(context.Background(), c, key, 3, func(inst Instance) (string, error) {
		attempted = append(attempted, inst.InstanceID)
		if len(attempted) < 3 {
			return "", fmt.Errorf("connection refused")
		}
		return "ok from " + inst.InstanceID, nil
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if len(attempted) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempted))
	}
	seen := map[string]bool{}
	for _, id := range attempted {
		if seen[id] {
			t.Errorf("instance %s re-selected after failing", id)
		}
		seen[id] = true
	}
	if want := "ok from " + attempted[2]; result != want {
		t.Errorf("result = %q, want %q", result, want)
	}
}

func TestResolveAndInvokeExhaustsAttempts(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(2)
	c := testClient(t, ft, nil)

	calls := 0
	err := c.ResolveAndInvoke(context.Background(), key, func(Instance) error {
		calls++
		return fmt.Errorf("boom")
	}, 3)
	if !stderrors.Is(err, ErrNoAvailableInstance) {
		t.Errorf("err = %v, want ErrNoAvailableInstance", err)
	}
	// Two instances, both failed and excluded; the third iteration has
	// nothing left to select.
	if calls != 2 {
		t.Errorf("attempt calls = %d, want 2", calls)
	}
}

func TestResolveAndInvokeDefaultAttempts(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(5)
	c := testClient(t, ft, func(cfg *Config) { cfg.Discovery.MaxAttempts = 2 })

	calls := 0
	err := c.ResolveAndInvoke(context.Background(), key, func(Instance) error {
		calls++
		return fmt.Errorf("boom")
	}, 0)
	if !stderrors.Is(err, ErrNoAvailableInstance) {
		t.Errorf("err = %v, want ErrNoAvailableInstance", err)
	}
	if calls != 2 {
		t.Errorf("attempt calls = %d, want configured default 2", calls)
	}
}

func TestFailedInstancesAreBlacklisted(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(3)
	c := testClient(t, ft, nil)

	failed := ""
	err := c.ResolveAndInvoke(context.Background(), key, func(inst Instance) error {
		if failed == "" {
			failed = inst.Address()
			return fmt.Errorf("boom")
		}
		return nil
	}, 3)
	if err != nil {
		t.Fatalf("ResolveAndInvoke: %v", err)
	}
	if !c.blacklist.Contains(failed) {
		t.Errorf("failed instance %s not blacklisted", failed)
	}
}

func TestBlacklistBypassWhenAllCandidatesBlacklisted(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(2)
	c := testClient(t, ft, nil)

	// Fail everything so both instances end up blacklisted.
	c.ResolveAndInvoke(context.Background(), key, func(Instance) error {
		return fmt.Errorf("boom")
	}, 3)
	if got := c.blacklist.Len(); got != 2 {
		t.Fatalf("blacklist size = %d, want 2", got)
	}

	// A fully-blacklisted service must still receive traffic.
	inst, err := c.SelectInstance(context.Background(), key)
	if err != nil {
		t.Fatalf("SelectInstance: %v", err)
	}
	if inst.InstanceID == "" {
		t.Error("no instance selected")
	}
}

func TestLazyRegistrationOnFirstResolve(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(1)
	c := testClient(t, ft, func(cfg *Config) {
		cfg.Registration.Enabled = true
		cfg.Registration.Mode = "lazy"
		cfg.Registration.ServiceName = "checkout"
		cfg.Registration.Port = 9090
		cfg.Registration.HeartbeatInterval = time.Hour
	})

	if got := c.RegistrationState(); got != StateUnregistered {
		t.Fatalf("state before first resolve = %v", got)
	}
	if _, err := c.Resolve(context.Background(), key); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := c.RegistrationState(); got != StateRegistered {
		t.Errorf("state after first resolve = %v, want registered", got)
	}
	if got := ft.registerCount(); got != 1 {
		t.Errorf("registers = %d, want 1", got)
	}
}

func TestClientClosedAfterShutdown(t *testing.T) {
	key := NewServiceKey("orders", "", "public")
	ft := newFakeTransport()
	ft.fetchFn = fixedTable(1)
	c := testClient(t, ft, nil)

	if err := c.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := c.Resolve(context.Background(), key); !stderrors.Is(err, ErrClientClosed) {
		t.Errorf("Resolve after shutdown: %v, want ErrClientClosed", err)
	}
	if err := c.ResolveAndInvoke(context.Background(), key, func(Instance) error { return nil }, 1); !stderrors.Is(err, ErrClientClosed) {
		t.Errorf("ResolveAndInvoke after shutdown: %v, want ErrClientClosed", err)
	}
}
