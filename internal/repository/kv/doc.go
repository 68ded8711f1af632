// Package kv provides the small string key-value stores the agent persists
// its local records in: the scheduled-notification ledger and the pending
// queue of the local notification platform.
//
// MemoryStore serves tests, FileStore keeps a YAML map on disk and
// SQLiteStore keeps a single table in an embedded SQLite database.
package kv
