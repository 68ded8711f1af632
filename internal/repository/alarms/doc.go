// Package alarms reads alarm records from the remote store and writes back
// the status changes the device owner makes (approve, decline, dismiss).
//
// Three sources share the Source interface:
//   - RESTSource talks to a PostgREST endpoint with go-resty,
//   - PostgresSource queries the alarms table directly through pgx,
//   - FileSource keeps records in a local YAML file for offline use.
package alarms
