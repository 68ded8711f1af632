// Package ledger records which platform notifications the agent has scheduled.
//
// The ledger is the local source of truth for "what the OS has been told".
// It lives under one fixed key of a kv.Store; each entry maps a notification
// identifier to the alarm and occurrence it belongs to, so reconciliation
// never has to parse identifiers.
package ledger
