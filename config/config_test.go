package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Server struct {
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"server"`
	Namespace string `mapstructure:"namespace"`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	path := writeTempConfig(t, "server:\n  address: localhost:8848\n  port: 8848\nnamespace: public\n")

	var cfg testConfig
	if err := Load("test-service", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Address != "localhost:8848" {
		t.Errorf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Namespace != "public" {
		t.Errorf("namespace = %q", cfg.Namespace)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeTempConfig(t, "namespace: from-yaml\n")
	t.Setenv("NAMESPACE", "from-env")

	var cfg testConfig
	if err := Load("test-service", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Namespace != "from-env" {
		t.Errorf("namespace = %q, want env override", cfg.Namespace)
	}
}

func TestLoad_NestedEnvBinding(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "10.0.0.1:8848")

	var cfg testConfig
	if err := Load("test-service", &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != "10.0.0.1:8848" {
		t.Errorf("server.address = %q, want nested env binding", cfg.Server.Address)
	}
}

func TestLoad_MissingFilesIsNotAnError(t *testing.T) {
	var cfg testConfig
	if err := Load("no-such-service", &cfg, WithConfigFile(""), WithEnvFile("")); err != nil {
		t.Fatalf("Load without files should succeed: %v", err)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("NAMING_HEARTBEAT_INTERVAL")

	want := map[string]bool{
		"naming_heartbeat_interval": false,
		"naming.heartbeat.interval": false,
		"naming.heartbeat_interval": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("missing variant %q in %v", k, variants)
		}
	}
}
