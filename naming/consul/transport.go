package consul

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/nacos-group/nacos-serving-go/errors"
	"github.com/nacos-group/nacos-serving-go/logger"
	"github.com/nacos-group/nacos-serving-go/naming"
)

const blockingWait = 30 * time.Second

func init() {
	naming.RegisterTransportFactory("consul", New)
}

// Transport talks to a Consul agent. Group and namespace of a service key
// have no Consul equivalent and are folded into the service name when they
// differ from the defaults.
type Transport struct {
	client *api.Client
	log    *logger.Logger
	wg     sync.WaitGroup
}

var _ naming.Transport = (*Transport)(nil)

// New builds the transport from the client configuration.
func New(cfg naming.Config, log *logger.Logger) (naming.Transport, error) {
	apiCfg := api.DefaultConfig()
	if len(cfg.ServerAddresses) > 0 {
		apiCfg.Address = cfg.ServerAddresses[0]
	}
	if cfg.Username != "" {
		apiCfg.HttpAuth = &api.HttpBasicAuth{Username: cfg.Username, Password: cfg.Password}
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul: creating client: %w", err)
	}
	return &Transport{client: client, log: log.WithComponent("naming.consul")}, nil
}

// serviceName flattens a key into a Consul service name.
func serviceName(key naming.ServiceKey) string {
	name := key.ServiceName
	if key.GroupName != "" && key.GroupName != naming.DefaultGroupName {
		name = key.GroupName + "-" + name
	}
	return name
}

// clusterFilter splits a key's comma-joined cluster list. Clusters map to
// Consul tags.
func clusterFilter(key naming.ServiceKey) []string {
	if key.Clusters == "" {
		return nil
	}
	return strings.Split(key.Clusters, ",")
}

// matchTag returns the first cluster present among the entry's tags.
func matchTag(tags, clusters []string) string {
	for _, c := range clusters {
		for _, tag := range tags {
			if tag == c {
				return c
			}
		}
	}
	return ""
}

// entryInstances converts health entries, dropping entries outside the
// cluster filter. A single-cluster filter is already applied server-side
// as the query tag; multi-cluster filters only work client-side because a
// Consul health query accepts at most one tag.
func entryInstances(entries []*api.ServiceEntry, clusters []string) []naming.Instance {
	instances := make([]naming.Instance, 0, len(entries))
	for _, e := range entries {
		cluster := matchTag(e.Service.Tags, clusters)
		if len(clusters) > 1 && cluster == "" {
			continue
		}
		addr := e.Service.Address
		if addr == "" {
			addr = e.Node.Address
		}
		instances = append(instances, naming.Instance{
			InstanceID: e.Service.ID,
			IP:         addr,
			Port:       e.Service.Port,
			Weight:     float64(e.Service.Weights.Passing),
			Healthy:    e.Checks.AggregatedStatus() == api.HealthPassing,
			Enabled:    true,
			Ephemeral:  true,
			Cluster:    cluster,
			Metadata:   e.Service.Meta,
		})
	}
	return instances
}

func (t *Transport) query(ctx context.Context, key naming.ServiceKey, waitIndex uint64) ([]naming.Instance, uint64, error) {
	opts := (&api.QueryOptions{
		WaitIndex: waitIndex,
		WaitTime:  blockingWait,
	}).WithContext(ctx)
	if key.Namespace != "" {
		opts.Datacenter = key.Namespace
	}

	clusters := clusterFilter(key)
	tag := ""
	if len(clusters) == 1 {
		tag = clusters[0]
	}
	entries, meta, err := t.client.Health().Service(serviceName(key), tag, false, opts)
	if err != nil {
		return nil, 0, errors.Unavailable("consul health query").WithCause(err)
	}
	return entryInstances(entries, clusters), meta.LastIndex, nil
}

// Fetch implements naming.Transport. LastIndex is the revision token.
func (t *Transport) Fetch(ctx context.Context, key naming.ServiceKey) ([]naming.Instance, int64, error) {
	instances, index, err := t.query(ctx, key, 0)
	if err != nil {
		return nil, 0, err
	}
	return instances, int64(index), nil
}

// OpenPushStream implements naming.Transport with a blocking-query loop.
// The channel closes when ctx ends.
func (t *Transport) OpenPushStream(ctx context.Context, key naming.ServiceKey) (<-chan naming.PushEvent, error) {
	events := make(chan naming.PushEvent, 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(events)
		var lastIndex uint64
		for {
			if ctx.Err() != nil {
				return
			}
			instances, index, err := t.query(ctx, key, lastIndex)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.log.Warn("blocking query failed", logger.Fields(
					logger.FieldServiceKey, key.String(),
					logger.FieldError, err.Error()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if index == lastIndex {
				continue
			}
			// Consul may rewind its index; restart the watch from scratch.
			if index < lastIndex {
				lastIndex = 0
				continue
			}
			lastIndex = index
			select {
			case events <- naming.PushEvent{Key: key, Instances: instances, Revision: int64(index)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// ClosePushStream implements naming.Transport. Blocking queries hold no
// server-side stream state.
func (t *Transport) ClosePushStream(naming.ServiceKey) error { return nil }

func checkID(desc *naming.RegistrationDescriptor) string {
	return "service:" + desc.Instance.InstanceID
}

// RegisterInstance implements naming.Transport. Ephemeral registrations
// carry a TTL check that expires after three missed heartbeat intervals.
func (t *Transport) RegisterInstance(ctx context.Context, desc *naming.RegistrationDescriptor) error {
	inst := desc.Instance
	reg := &api.AgentServiceRegistration{
		ID:      inst.InstanceID,
		Name:    serviceName(desc.Key),
		Address: inst.IP,
		Port:    inst.Port,
		Meta:    inst.Metadata,
		Weights: &api.AgentWeights{Passing: int(inst.Weight), Warning: 1},
	}
	if inst.Cluster != "" {
		reg.Tags = []string{inst.Cluster}
	}
	if desc.Ephemeral {
		ttl := desc.HeartbeatInterval * 3
		reg.Check = &api.AgentServiceCheck{
			CheckID:                        checkID(desc),
			TTL:                            ttl.String(),
			DeregisterCriticalServiceAfter: (ttl * 2).String(),
		}
	}
	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	if err := t.client.Agent().ServiceRegisterOpts(reg, opts); err != nil {
		return errors.Unavailable("consul register").WithCause(err)
	}
	return nil
}

// DeregisterInstance implements naming.Transport.
func (t *Transport) DeregisterInstance(ctx context.Context, desc *naming.RegistrationDescriptor) error {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	if err := t.client.Agent().ServiceDeregisterOpts(desc.Instance.InstanceID, opts); err != nil {
		return errors.Unavailable("consul deregister").WithCause(err)
	}
	return nil
}

// SendHeartbeat implements naming.Transport by refreshing the TTL check.
func (t *Transport) SendHeartbeat(ctx context.Context, desc *naming.RegistrationDescriptor) error {
	if !desc.Ephemeral {
		return nil
	}
	opts := (&api.QueryOptions{}).WithContext(ctx)
	if err := t.client.Agent().UpdateTTLOpts(checkID(desc), "heartbeat", api.HealthPassing, opts); err != nil {
		return errors.Unavailable("consul heartbeat").WithCause(err)
	}
	return nil
}

// Close implements naming.Transport.
func (t *Transport) Close() error {
	t.wg.Wait()
	return nil
}
