// Package consul implements the naming transport on HashiCorp Consul.
// Instance lists come from the health endpoint; the push stream is a
// blocking-query loop with the catalog's LastIndex as the revision.
// Ephemeral registrations use a TTL check kept alive by heartbeats.
//
// The transport registers itself under the name "consul".
package consul
