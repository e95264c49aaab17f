// Package naming implements the client-side service discovery cache and the
// registration lifecycle of the local instance.
//
// The package keeps a per-service snapshot table fed by registry push
// events, selects healthy instances under a load-balancing strategy with
// failover, and drives the process's own instance through
// register → heartbeat → deregister with bounded retries and time-bounded
// graceful shutdown.
//
// # Architecture
//
//   - Cache: push-driven instance tables with atomic snapshot replacement
//   - Selector: round-robin / random / weighted-random instance selection
//   - Client: resolution facade with per-call failover and blacklisting
//   - registrar: single-writer registration state machine with heartbeats
//
// # Backends
//
//   - naming/nacoshttp: nacos open-api over HTTP with polling push
//   - naming/consul: HashiCorp Consul with blocking-query push
//   - naming/static: in-memory backend for development and testing
package naming
