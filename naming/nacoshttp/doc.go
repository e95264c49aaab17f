// Package nacoshttp implements the naming transport over the nacos v1
// open-api. Instance lists are fetched and polled over plain HTTP; the
// poll loop turns list changes into push events with the server's
// lastRefTime as the revision. Registration, deregistration and heartbeats
// map onto the /nacos/v1/ns/instance endpoints.
//
// The transport registers itself under the name "nacos".
package nacoshttp
