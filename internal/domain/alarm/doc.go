// Package alarm contains the core types of the alarm scheduler.
//
// It defines the Alarm record as the remote source hands it over, the
// deterministic notification identifiers derived from it, and Occurrences,
// which expands an alarm into the bounded list of upcoming fire times.
package alarm
