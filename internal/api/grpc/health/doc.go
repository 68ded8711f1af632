// Package health exposes the standard gRPC health service for the agent.
//
// The agent reports NOT_SERVING until its first reconciliation pass
// completes, so supervisors can tell a stuck agent from a healthy one.
package health
