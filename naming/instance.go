package naming

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultGroupName is used when a ServiceKey carries no explicit group.
const DefaultGroupName = "DEFAULT_GROUP"

// ServiceKey identifies a discoverable group of instances.
// It is immutable and usable as a map key; equality is structural.
type ServiceKey struct {
	ServiceName string
	GroupName   string
	Namespace   string
	// Clusters is a comma-joined, sorted cluster filter. Empty means all.
	Clusters string
}

// NewServiceKey builds a normalized ServiceKey.
func NewServiceKey(serviceName, groupName, namespace string, clusters ...string) ServiceKey {
	if groupName == "" {
		groupName = DefaultGroupName
	}
	filtered := make([]string, 0, len(clusters))
	for _, c := range clusters {
		if c = strings.TrimSpace(c); c != "" {
			filtered = append(filtered, c)
		}
	}
	sort.Strings(filtered)
	return ServiceKey{
		ServiceName: serviceName,
		GroupName:   groupName,
		Namespace:   namespace,
		Clusters:    strings.Join(filtered, ","),
	}
}

// Grouped returns the group-qualified service name (group@@service).
func (k ServiceKey) Grouped() string {
	return k.GroupName + "@@" + k.ServiceName
}

// String renders the key for logging and selector bookkeeping.
func (k ServiceKey) String() string {
	return fmt.Sprintf("%s/%s@@%s[%s]", k.Namespace, k.GroupName, k.ServiceName, k.Clusters)
}

// Instance is one registry entry. Instances are value objects and are never
// mutated in place; a changed instance arrives as part of a replacement
// table.
type Instance struct {
	InstanceID string            `json:"instanceId" mapstructure:"instance_id"`
	IP         string            `json:"ip" mapstructure:"ip"`
	Port       int               `json:"port" mapstructure:"port"`
	Weight     float64           `json:"weight" mapstructure:"weight"`
	Healthy    bool              `json:"healthy" mapstructure:"healthy"`
	Enabled    bool              `json:"enabled" mapstructure:"enabled"`
	Ephemeral  bool              `json:"ephemeral" mapstructure:"ephemeral"`
	Cluster    string            `json:"clusterName" mapstructure:"cluster"`
	Metadata   map[string]string `json:"metadata" mapstructure:"metadata"`
}

// Eligible reports whether the instance is a selection candidate.
func (i Instance) Eligible() bool {
	return i.Healthy && i.Enabled
}

// Address returns the instance endpoint as ip:port.
func (i Instance) Address() string {
	return fmt.Sprintf("%s:%d", i.IP, i.Port)
}
