// Package static implements an in-memory naming transport for development
// and tests. Instance tables are seeded and mutated through SetInstances
// and Push; mutations fan out to open push streams exactly like registry
// notifications. Registrations and heartbeats are recorded, not sent
// anywhere.
//
// The transport registers itself under the name "static".
package static
