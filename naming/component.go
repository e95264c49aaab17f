package naming

import (
	"context"
	"fmt"
	"strings"

	"github.com/nacos-group/nacos-serving-go/component"
)

// Component adapts a Client to the component lifecycle so it can be
// managed alongside other infrastructure in a component.Registry.
type Component struct {
	client *Client
	cfg    Config
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps an already-constructed client.
func NewComponent(client *Client) *Component {
	return &Component{client: client, cfg: client.cfg}
}

// Client returns the wrapped client.
func (c *Component) Client() *Client { return c.client }

// Name implements component.Component.
func (c *Component) Name() string { return "naming" }

// Start performs eager registration when configured.
func (c *Component) Start(ctx context.Context) error {
	return c.client.Start(ctx)
}

// Stop runs the graceful shutdown sequence within the configured budget.
func (c *Component) Stop(ctx context.Context) error {
	return c.client.Shutdown(ctx)
}

// Health reports the registration lifecycle state. A disabled registration
// is healthy by definition; RegisterFailed is degraded because the process
// serves traffic but is not discoverable.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.cfg.Registration.Enabled {
		h.Message = "registration disabled"
		return h
	}
	state := c.client.RegistrationState()
	h.Message = state.String()
	switch state {
	case StateRegisterFailed:
		h.Status = component.StatusDegraded
	case StateDeregistering, StateDeregistered:
		h.Status = component.StatusUnhealthy
	}
	return h
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("transport=%s servers=%s namespace=%s",
		c.cfg.Transport, strings.Join(c.cfg.ServerAddresses, ","), c.cfg.Namespace)
	if c.cfg.Registration.Enabled {
		details += fmt.Sprintf(" service=%s:%d mode=%s",
			c.cfg.Registration.ServiceName, c.cfg.Registration.Port, c.cfg.Registration.Mode)
	}
	return component.Description{
		Name:    "Naming Client",
		Type:    "discovery",
		Details: details,
	}
}
