package alarm

import (
	"strconv"
	"strings"
)

// identifierPrefix starts every notification identifier owned by an alarm.
const identifierPrefix = "alarm-"

// SingleOccurrenceIndex is the index recorded for an alarm that produced one occurrence.
const SingleOccurrenceIndex = -1

// Identifier derives the platform identifier for occurrence index of total.
// A lone occurrence maps to "alarm-{id}", otherwise "alarm-{id}-{index}".
//
// The mapping is not injective when ids contain "-{digits}": alarm "1-2"
// with one occurrence and alarm "1" at index 2 both yield "alarm-1-2". The
// ledger keeps the alarm id next to each identifier, and the scheduler
// refuses to reuse an identifier already recorded for a different alarm.
func Identifier(alarmID string, index, total int) string {
	if total == 1 {
		return BaseIdentifier(alarmID)
	}

	return identifierPrefix + alarmID + "-" + strconv.Itoa(index)
}

// BaseIdentifier returns "alarm-{id}".
func BaseIdentifier(alarmID string) string {
	return identifierPrefix + alarmID
}

// ParseIdentifier recovers the alarm id from an identifier by stripping the
// prefix and a trailing "-{digits}" suffix. It exists only to read ledgers
// written before entries carried their alarm id; an alarm id that itself ends
// in "-{digits}" is ambiguous here.
func ParseIdentifier(identifier string) (alarmID string, index int, ok bool) {
	rest, found := strings.CutPrefix(identifier, identifierPrefix)
	if !found || rest == "" {
		return "", 0, false
	}

	dash := strings.LastIndexByte(rest, '-')
	if dash <= 0 || dash == len(rest)-1 {
		return rest, SingleOccurrenceIndex, true
	}

	suffix := rest[dash+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return rest, SingleOccurrenceIndex, true
		}
	}

	n, err := strconv.Atoi(suffix)
	if err != nil {
		return rest, SingleOccurrenceIndex, true
	}

	return rest[:dash], n, true
}
