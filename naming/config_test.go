package naming

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.ServerAddresses = []string{"localhost:8848"}
	cfg.Registration.ServiceName = "checkout"
	cfg.Registration.Port = 9090
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Transport != "nacos" {
		t.Errorf("transport = %q", cfg.Transport)
	}
	if cfg.Discovery.Strategy != StrategyRoundRobin {
		t.Errorf("strategy = %q", cfg.Discovery.Strategy)
	}
	if cfg.Discovery.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d", cfg.Discovery.MaxAttempts)
	}
	if cfg.Registration.Mode != "eager" {
		t.Errorf("mode = %q", cfg.Registration.Mode)
	}
	if cfg.Registration.HeartbeatFailureThreshold != 3 {
		t.Errorf("heartbeat_failure_threshold = %d", cfg.Registration.HeartbeatFailureThreshold)
	}
	if cfg.Shutdown.Timeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Shutdown.Timeout)
	}
}

func TestConfigDefaultsPreserveExplicitValues(t *testing.T) {
	cfg := Config{Transport: "consul"}
	cfg.Discovery.MaxAttempts = 7
	cfg.ApplyDefaults()

	if cfg.Transport != "consul" {
		t.Errorf("transport overwritten: %q", cfg.Transport)
	}
	if cfg.Discovery.MaxAttempts != 7 {
		t.Errorf("max_attempts overwritten: %d", cfg.Discovery.MaxAttempts)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidateRejectsBadStrategy(t *testing.T) {
	cfg := validTestConfig()
	cfg.Discovery.Strategy = "fastest"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid strategy accepted")
	}
	if !strings.Contains(err.Error(), "strategy") {
		t.Errorf("error does not name the field: %v", err)
	}
}

func TestConfigValidateRequiresServiceIdentity(t *testing.T) {
	cfg := validTestConfig()
	cfg.Registration.ServiceName = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled registration without service_name accepted")
	}

	cfg = validTestConfig()
	cfg.Registration.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("enabled registration without port accepted")
	}

	// Identity fields are optional when registration is disabled.
	cfg = validTestConfig()
	cfg.Registration.Enabled = false
	cfg.Registration.ServiceName = ""
	cfg.Registration.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled registration rejected: %v", err)
	}
}
