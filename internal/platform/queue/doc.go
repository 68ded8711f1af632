// Package queue is an in-process notification platform for hosts without a
// native one (desktop agents, tests).
//
// It arms a timer per request, calls a DeliveryHandler when one fires, caps
// the number of pending requests like mobile systems do, and persists the
// pending set in a kv.Store so a restarted agent picks its schedule back up.
package queue
