package nacoshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nacos-group/nacos-serving-go/errors"
	"github.com/nacos-group/nacos-serving-go/httpclient"
	"github.com/nacos-group/nacos-serving-go/logger"
	"github.com/nacos-group/nacos-serving-go/naming"
)

const (
	instancePath     = "/nacos/v1/ns/instance"
	instanceListPath = "/nacos/v1/ns/instance/list"
	beatPath         = "/nacos/v1/ns/instance/beat"
	loginPath        = "/nacos/v1/auth/login"

	defaultPollInterval = time.Second
	defaultHTTPTimeout  = 5 * time.Second
)

func init() {
	naming.RegisterTransportFactory("nacos", New)
}

// Transport talks to a nacos server cluster over the v1 open-api.
type Transport struct {
	servers  []*httpclient.Client
	cur      atomic.Uint32
	username string
	password string
	log      *logger.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	pollInterval time.Duration
	wg           sync.WaitGroup
}

var _ naming.Transport = (*Transport)(nil)

// New builds the transport from the client configuration. Every configured
// server address gets its own HTTP client; calls rotate to the next server
// after a failure.
func New(cfg naming.Config, log *logger.Logger) (naming.Transport, error) {
	if len(cfg.ServerAddresses) == 0 {
		return nil, fmt.Errorf("nacoshttp: at least one server address is required")
	}
	servers := make([]*httpclient.Client, 0, len(cfg.ServerAddresses))
	for _, addr := range cfg.ServerAddresses {
		baseURL := addr
		if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
			baseURL = "http://" + addr
		}
		c, err := httpclient.New(httpclient.Config{BaseURL: baseURL, Timeout: defaultHTTPTimeout})
		if err != nil {
			return nil, fmt.Errorf("nacoshttp: client for %s: %w", addr, err)
		}
		servers = append(servers, c)
	}
	return &Transport{
		servers:      servers,
		username:     cfg.Username,
		password:     cfg.Password,
		log:          log.WithComponent("naming.nacoshttp"),
		pollInterval: defaultPollInterval,
	}, nil
}

// do executes the request against the current server, rotating to the next
// one when the call fails at the transport level.
func (t *Transport) do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	if err := t.attachToken(ctx, &req); err != nil {
		return nil, err
	}
	idx := t.cur.Load()
	resp, err := t.servers[idx%uint32(len(t.servers))].Do(ctx, req)
	if err != nil && errors.IsRetryable(err) {
		t.cur.CompareAndSwap(idx, idx+1)
	}
	return resp, err
}

// attachToken logs in and caches the access token when credentials are
// configured.
func (t *Transport) attachToken(ctx context.Context, req *httpclient.Request) error {
	if t.username == "" {
		return nil
	}
	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()
	if time.Now().After(t.tokenExpiry) {
		resp, err := t.servers[0].Do(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   loginPath,
			Form:   map[string]string{"username": t.username, "password": t.password},
		})
		if err != nil {
			return fmt.Errorf("nacoshttp: login: %w", err)
		}
		var login struct {
			AccessToken string `json:"accessToken"`
			TokenTTL    int64  `json:"tokenTtl"`
		}
		if err := resp.JSON(&login); err != nil {
			return fmt.Errorf("nacoshttp: decoding login response: %w", err)
		}
		t.accessToken = login.AccessToken
		// Refresh at 90% of the TTL.
		t.tokenExpiry = time.Now().Add(time.Duration(login.TokenTTL) * time.Second * 9 / 10)
	}
	if req.Query == nil {
		req.Query = map[string]string{}
	}
	req.Query["accessToken"] = t.accessToken
	return nil
}

type hostJSON struct {
	InstanceID  string            `json:"instanceId"`
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	Weight      float64           `json:"weight"`
	Healthy     bool              `json:"healthy"`
	Enabled     bool              `json:"enabled"`
	Ephemeral   bool              `json:"ephemeral"`
	ClusterName string            `json:"clusterName"`
	Metadata    map[string]string `json:"metadata"`
}

type instanceListJSON struct {
	Hosts       []hostJSON `json:"hosts"`
	LastRefTime int64      `json:"lastRefTime"`
}

// Fetch implements naming.Transport. The server's lastRefTime is the
// revision token.
func (t *Transport) Fetch(ctx context.Context, key naming.ServiceKey) ([]naming.Instance, int64, error) {
	resp, err := t.do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   instanceListPath,
		Query: map[string]string{
			"serviceName": key.Grouped(),
			"groupName":   key.GroupName,
			"namespaceId": key.Namespace,
			"clusters":    key.Clusters,
			"healthyOnly": "false",
		},
	})
	if err != nil {
		return nil, 0, err
	}

	var list instanceListJSON
	if err := resp.JSON(&list); err != nil {
		return nil, 0, errors.Internal("decoding instance list").WithCause(err)
	}

	instances := make([]naming.Instance, 0, len(list.Hosts))
	for _, h := range list.Hosts {
		instances = append(instances, naming.Instance{
			InstanceID: h.InstanceID,
			IP:         h.IP,
			Port:       h.Port,
			Weight:     h.Weight,
			Healthy:    h.Healthy,
			Enabled:    h.Enabled,
			Ephemeral:  h.Ephemeral,
			Cluster:    h.ClusterName,
			Metadata:   h.Metadata,
		})
	}
	return instances, list.LastRefTime, nil
}

// OpenPushStream implements naming.Transport by polling the instance list.
// Unchanged lists still produce events; the cache's revision guard drops
// them. The channel closes when ctx ends.
func (t *Transport) OpenPushStream(ctx context.Context, key naming.ServiceKey) (<-chan naming.PushEvent, error) {
	events := make(chan naming.PushEvent, 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(events)
		ticker := time.NewTicker(t.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			instances, revision, err := t.Fetch(ctx, key)
			if err != nil {
				t.log.Warn("poll failed", logger.Fields(
					logger.FieldServiceKey, key.String(),
					logger.FieldError, err.Error()))
				continue
			}
			select {
			case events <- naming.PushEvent{Key: key, Instances: instances, Revision: revision}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// ClosePushStream implements naming.Transport. Polling holds no
// server-side state; cancellation of the stream context stops the loop.
func (t *Transport) ClosePushStream(naming.ServiceKey) error { return nil }

func registrationForm(desc *naming.RegistrationDescriptor) map[string]string {
	inst := desc.Instance
	form := map[string]string{
		"serviceName": desc.Key.Grouped(),
		"groupName":   desc.Key.GroupName,
		"namespaceId": desc.Key.Namespace,
		"ip":          inst.IP,
		"port":        strconv.Itoa(inst.Port),
		"weight":      strconv.FormatFloat(inst.Weight, 'f', -1, 64),
		"enabled":     strconv.FormatBool(inst.Enabled),
		"healthy":     strconv.FormatBool(inst.Healthy),
		"ephemeral":   strconv.FormatBool(inst.Ephemeral),
		"clusterName": inst.Cluster,
	}
	if len(inst.Metadata) > 0 {
		if meta, err := json.Marshal(inst.Metadata); err == nil {
			form["metadata"] = string(meta)
		}
	}
	return form
}

// RegisterInstance implements naming.Transport.
func (t *Transport) RegisterInstance(ctx context.Context, desc *naming.RegistrationDescriptor) error {
	_, err := t.do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   instancePath,
		Form:   registrationForm(desc),
	})
	return err
}

// DeregisterInstance implements naming.Transport.
func (t *Transport) DeregisterInstance(ctx context.Context, desc *naming.RegistrationDescriptor) error {
	inst := desc.Instance
	_, err := t.do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   instancePath,
		Query: map[string]string{
			"serviceName": desc.Key.Grouped(),
			"groupName":   desc.Key.GroupName,
			"namespaceId": desc.Key.Namespace,
			"ip":          inst.IP,
			"port":        strconv.Itoa(inst.Port),
			"clusterName": inst.Cluster,
			"ephemeral":   strconv.FormatBool(inst.Ephemeral),
		},
	})
	return err
}

// SendHeartbeat implements naming.Transport.
func (t *Transport) SendHeartbeat(ctx context.Context, desc *naming.RegistrationDescriptor) error {
	inst := desc.Instance
	beat := map[string]any{
		"ip":          inst.IP,
		"port":        inst.Port,
		"serviceName": desc.Key.Grouped(),
		"cluster":     inst.Cluster,
		"weight":      inst.Weight,
		"metadata":    inst.Metadata,
	}
	beatJSON, err := json.Marshal(beat)
	if err != nil {
		return errors.Internal("encoding heartbeat").WithCause(err)
	}
	_, err = t.do(ctx, httpclient.Request{
		Method: http.MethodPut,
		Path:   beatPath,
		Form: map[string]string{
			"serviceName": desc.Key.Grouped(),
			"groupName":   desc.Key.GroupName,
			"namespaceId": desc.Key.Namespace,
			"beat":        string(beatJSON),
		},
	})
	return err
}

// Close implements naming.Transport. Poll loops are stopped through their
// stream contexts by the cache before Close is called.
func (t *Transport) Close() error {
	t.wg.Wait()
	return nil
}
