package naming

import (
	"time"

	"github.com/nacos-group/nacos-serving-go/validation"
)

// Config is the single immutable configuration object the client is
// constructed from. Load it through the config package or build it in code;
// either way call ApplyDefaults then Validate before use.
type Config struct {
	// Transport selects the registry backend ("nacos", "consul", "static").
	Transport string `mapstructure:"transport" validate:"required"`
	// ServerAddresses lists registry endpoints (host:port or URL).
	ServerAddresses []string `mapstructure:"server_addresses"`
	// Namespace scopes all service keys.
	Namespace string `mapstructure:"namespace"`
	// Username and Password authenticate against registries that require it.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	Discovery    DiscoveryConfig    `mapstructure:"discovery"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Blacklist    BlacklistConfig    `mapstructure:"blacklist"`
	Shutdown     ShutdownConfig     `mapstructure:"shutdown"`
}

// DiscoveryConfig tunes resolution and the instance cache.
type DiscoveryConfig struct {
	// Strategy is the default load-balancing policy for resolves.
	Strategy Strategy `mapstructure:"strategy" validate:"omitempty,oneof=round_robin random weighted_random"`
	// MaxAttempts bounds failover within one ResolveAndInvoke call.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1"`
	// EmptyProtection keeps the last non-empty table when an empty push
	// arrives.
	EmptyProtection bool `mapstructure:"empty_protection"`
	// ResolveTimeout bounds cold fetches from the registry.
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" validate:"gt=0"`
	// CacheTTL is how long a fetched table is served without a push stream.
	// Zero serves cached tables indefinitely.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// RegistrationConfig describes the local instance and its lifecycle policy.
type RegistrationConfig struct {
	// Enabled turns self-registration on.
	Enabled bool `mapstructure:"enabled"`
	// Mode is "eager" (register at start) or "lazy" (register on first
	// resolve).
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=eager lazy"`

	ServiceName string            `mapstructure:"service_name"`
	GroupName   string            `mapstructure:"group_name"`
	Cluster     string            `mapstructure:"cluster"`
	IP          string            `mapstructure:"ip"`
	Port        int               `mapstructure:"port" validate:"gte=0,lte=65535"`
	Weight      float64           `mapstructure:"weight" validate:"gte=0"`
	Metadata    map[string]string `mapstructure:"metadata"`
	Ephemeral   bool              `mapstructure:"ephemeral"`

	// RetryTimes is the number of retries after the first failed attempt.
	RetryTimes int `mapstructure:"retry_times" validate:"gte=0"`
	// RetryInterval spaces registration retries.
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gt=0"`
	// BackoffFactor of 1.0 keeps the interval fixed; above 1.0 grows it
	// exponentially per retry.
	BackoffFactor float64 `mapstructure:"backoff_factor" validate:"gte=1"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gt=0"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout" validate:"gt=0"`
	// HeartbeatFailureThreshold is how many consecutive failed beats
	// trigger re-registration.
	HeartbeatFailureThreshold int `mapstructure:"heartbeat_failure_threshold" validate:"gte=1"`
}

// BlacklistConfig tunes the faulty-instance blacklist.
type BlacklistConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TTL is how long an instance stays blacklisted without a probe result.
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
	// ProbeInterval spaces background TCP recovery probes.
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gt=0"`
	// ProbeTimeout bounds a single probe connection attempt.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`
}

// ShutdownConfig tunes graceful teardown.
type ShutdownConfig struct {
	// Timeout bounds the whole graceful shutdown, deregistration included.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// DeregisterOnExit removes the local instance before exiting.
	DeregisterOnExit bool `mapstructure:"deregister_on_exit"`
}

// DefaultConfig returns a Config with every policy knob at its default.
// Unmarshal loaded configuration on top of it.
func DefaultConfig() Config {
	return Config{
		Transport: "nacos",
		Discovery: DiscoveryConfig{
			Strategy:        StrategyRoundRobin,
			MaxAttempts:     3,
			EmptyProtection: true,
			ResolveTimeout:  3 * time.Second,
			CacheTTL:        10 * time.Second,
		},
		Registration: RegistrationConfig{
			Enabled:                   true,
			Mode:                      "eager",
			GroupName:                 DefaultGroupName,
			Weight:                    1.0,
			Ephemeral:                 true,
			RetryTimes:                3,
			RetryInterval:             2 * time.Second,
			BackoffFactor:             1.0,
			HeartbeatInterval:         5 * time.Second,
			HeartbeatTimeout:          3 * time.Second,
			HeartbeatFailureThreshold: 3,
		},
		Blacklist: BlacklistConfig{
			Enabled:       true,
			TTL:           30 * time.Second,
			ProbeInterval: 5 * time.Second,
			ProbeTimeout:  time.Second,
		},
		Shutdown: ShutdownConfig{
			Timeout:          10 * time.Second,
			DeregisterOnExit: true,
		},
	}
}

// ApplyDefaults fills unset fields that have non-zero defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Transport == "" {
		c.Transport = def.Transport
	}
	if c.Discovery.Strategy == "" {
		c.Discovery.Strategy = def.Discovery.Strategy
	}
	if c.Discovery.MaxAttempts == 0 {
		c.Discovery.MaxAttempts = def.Discovery.MaxAttempts
	}
	if c.Discovery.ResolveTimeout == 0 {
		c.Discovery.ResolveTimeout = def.Discovery.ResolveTimeout
	}
	if c.Registration.Mode == "" {
		c.Registration.Mode = def.Registration.Mode
	}
	if c.Registration.GroupName == "" {
		c.Registration.GroupName = def.Registration.GroupName
	}
	if c.Registration.Weight == 0 {
		c.Registration.Weight = def.Registration.Weight
	}
	if c.Registration.RetryInterval == 0 {
		c.Registration.RetryInterval = def.Registration.RetryInterval
	}
	if c.Registration.BackoffFactor == 0 {
		c.Registration.BackoffFactor = def.Registration.BackoffFactor
	}
	if c.Registration.HeartbeatInterval == 0 {
		c.Registration.HeartbeatInterval = def.Registration.HeartbeatInterval
	}
	if c.Registration.HeartbeatTimeout == 0 {
		c.Registration.HeartbeatTimeout = def.Registration.HeartbeatTimeout
	}
	if c.Registration.HeartbeatFailureThreshold == 0 {
		c.Registration.HeartbeatFailureThreshold = def.Registration.HeartbeatFailureThreshold
	}
	if c.Blacklist.TTL == 0 {
		c.Blacklist.TTL = def.Blacklist.TTL
	}
	if c.Blacklist.ProbeInterval == 0 {
		c.Blacklist.ProbeInterval = def.Blacklist.ProbeInterval
	}
	if c.Blacklist.ProbeTimeout == 0 {
		c.Blacklist.ProbeTimeout = def.Blacklist.ProbeTimeout
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = def.Shutdown.Timeout
	}
}

// Validate checks structural constraints. Registration identity fields are
// only required when registration is enabled.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if c.Registration.Enabled {
		if c.Registration.ServiceName == "" {
			return validation.FieldRequired("registration.service_name")
		}
		if c.Registration.Port <= 0 {
			return validation.FieldRequired("registration.port")
		}
	}
	return nil
}
