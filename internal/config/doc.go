// Package config defines the alarm agent settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills in defaults (timeouts, intervals, file locations) before
// checking the struct tags, so a minimal file only needs an owner_id.
package config
