// Package agent hosts the alarm scheduler on a device.
//
// An Agent owns the local notification queue, the ledger and the
// reconciler for one device owner. It runs reconciliation passes on a
// ticker, answers alarm requests, dismisses fired alarms and shows
// deliveries as desktop alerts. Passes are serialised by a mutex inside
// the process and by a lock file across processes.
package agent
