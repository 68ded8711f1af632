package alarm

import (
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// MaxOccurrences caps how many notifications a single alarm may hold.
	// Mobile platforms cap the pending backlog (iOS: 64 system-wide).
	MaxOccurrences = 8
	// ScanWindowDays bounds how far ahead a repeating alarm is expanded.
	ScanWindowDays = 60
)

// rruleWeekdays maps 0=Sunday ... 6=Saturday onto rrule weekdays.
//
//nolint:gochecknoglobals // Read-only lookup table.
var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Occurrences returns the upcoming fire times of a, strictly after now,
// in increasing order and at most MaxOccurrences long.
//
// One-shot alarms yield FireTime when it is still ahead. Repeating alarms
// take the hour and minute of FireTime in now's location and walk calendar
// days from now's date for ScanWindowDays days, keeping days whose weekday
// is in RepeatDays. Invalid alarms yield nothing.
func Occurrences(a *Alarm, now time.Time) []time.Time {
	if a.Validate() != nil {
		return nil
	}

	if !a.IsRepeating() {
		if a.FireTime.After(now) {
			return []time.Time{a.FireTime}
		}

		return nil
	}

	loc := now.Location()
	anchor := a.FireTime.In(loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   day,
		Until:     day.AddDate(0, 0, ScanWindowDays).Add(-time.Second),
		Byweekday: weekdays(a.RepeatDays),
		Byhour:    []int{anchor.Hour()},
		Byminute:  []int{anchor.Minute()},
		Bysecond:  []int{0},
	})
	if err != nil {
		return nil
	}

	result := make([]time.Time, 0, MaxOccurrences)

	for _, candidate := range rule.All() {
		candidate = skipGap(candidate, anchor.Hour(), anchor.Minute())
		if !candidate.After(now) {
			continue
		}

		result = append(result, candidate)
		if len(result) == MaxOccurrences {
			break
		}
	}

	return result
}

// skipGap moves a candidate whose wall clock fell into a daylight-saving gap
// forward by the size of the gap, so 02:30 on a one-hour spring-forward day
// fires at 03:30 instead of the normalised 01:30.
func skipGap(candidate time.Time, hour, minute int) time.Time {
	if candidate.Hour() == hour && candidate.Minute() == minute {
		return candidate
	}

	_, end := candidate.ZoneBounds()
	if end.IsZero() {
		return candidate
	}

	_, before := candidate.Zone()
	_, after := end.Zone()

	if after <= before {
		return candidate
	}

	return candidate.Add(time.Duration(after-before) * time.Second)
}

// weekdays converts validated day numbers into a sorted, de-duplicated rrule set.
func weekdays(days []int) []rrule.Weekday {
	unique := slices.Clone(days)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	result := make([]rrule.Weekday, 0, len(unique))
	for _, day := range unique {
		result = append(result, rruleWeekdays[day])
	}

	return result
}
