// Package version exposes build metadata of the alarm agent.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags; Full falls back to the VCS stamp Go embeds in the binary.
package version
