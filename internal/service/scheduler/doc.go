// Package scheduler keeps platform notifications in step with approved alarms.
//
// Scheduler issues and cancels platform requests for a single alarm and
// records them in the ledger. Reconciler takes the full alarm list of an
// owner, retires everything the ledger holds for alarms that are no longer
// wanted, then schedules whatever is missing.
//
// Platform failures never propagate: they are logged per notification and
// the remaining notifications are still processed. Only ledger writes can
// fail a call, and the next pass repairs whatever was left behind.
package scheduler
