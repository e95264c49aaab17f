// Package component defines lifecycle interfaces for the naming client.
//
// The discovery component (and anything an application layers next to it)
// implements Component so that a process can start, health-check and stop
// its infrastructure pieces in a deterministic order through a Registry.
package component
