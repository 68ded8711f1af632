// Package integration holds end-to-end tests that wire the agent to real
// stores, sources and transports.
package integration
