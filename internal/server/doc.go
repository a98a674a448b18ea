// Package server holds the long-lived server wiring: the dependency
// container shared by all tool handlers, the HTTP transport with bearer
// authentication, health endpoints for Kubernetes probes, and the dedicated
// metrics listener.
//
// Dependencies are injected through the ServerContext rather than reached
// through package-level state, so tests can assemble a server from fakes.
package server
