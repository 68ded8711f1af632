package alarm

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/alarm-agent/internal/validate"
)

// Status is the approval state of an alarm.
type Status string

const (
	// StatusPending is set while the child has not answered the parent's request.
	StatusPending Status = "pending"
	// StatusApproved alarms are the only ones that get scheduled.
	StatusApproved Status = "approved"
	// StatusDeclined is set when the child refused the request.
	StatusDeclined Status = "declined"
	// StatusTriggered is set once the alarm rang and was dismissed.
	StatusTriggered Status = "triggered"
)

// InvalidWeekday replaces a repeat pattern that could not be parsed,
// so that validation rejects the alarm instead of treating it as one-shot.
const InvalidWeekday = -1

// errEmptyWeekday is returned for patterns like "1,,3".
var errEmptyWeekday = errors.New("empty weekday")

// Alarm is a read-only copy of the remote alarm record.
type Alarm struct {
	// ID is the opaque identifier, stable for the alarm's lifetime.
	ID string `validate:"required"`
	// ChildOwnerID identifies the device owner the alarm notifies.
	ChildOwnerID string `validate:"required"`
	// ParentID identifies the parent who created the alarm.
	ParentID string
	// FireTime is the anchor time. Repeating alarms only use its hour and minute.
	FireTime time.Time `validate:"required"`
	// RepeatDays holds weekdays (0=Sunday ... 6=Saturday). Empty means one-shot.
	RepeatDays []int `validate:"dive,min=0,max=6"`
	// Status is the approval state.
	Status Status `validate:"oneof=pending approved declined triggered"`
	// Label is the optional display text.
	Label string
	// ProofOfAwakeRequired asks for a solved math problem before dismissal.
	ProofOfAwakeRequired bool
}

// Validate reports missing or malformed fields.
func (a *Alarm) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: alarm is nil", validate.ErrInvalid)
	}

	return validate.Struct(a)
}

// IsRepeating reports whether the alarm fires on a weekly pattern.
func (a *Alarm) IsRepeating() bool {
	return len(a.RepeatDays) > 0
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.RepeatDays = slices.Clone(a.RepeatDays)

	return &cloned
}

// DisplayTitle returns the label or a generic title when it is empty.
func (a *Alarm) DisplayTitle() string {
	if label := strings.TrimSpace(a.Label); label != "" {
		return label
	}

	return "Alarm"
}

// ParseRepeatPattern converts the stored "1,3,5" form into weekdays.
// An empty pattern yields nil (one-shot alarm).
func ParseRepeatPattern(pattern string) ([]int, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}

	parts := strings.Split(pattern, ",")
	days := make([]int, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("parse repeat pattern %q: %w", pattern, errEmptyWeekday)
		}

		day, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse repeat pattern %q: %w", pattern, err)
		}

		days = append(days, day)
	}

	return days, nil
}

// FormatRepeatPattern is the inverse of ParseRepeatPattern.
func FormatRepeatPattern(days []int) string {
	parts := make([]string, 0, len(days))
	for _, day := range days {
		parts = append(parts, strconv.Itoa(day))
	}

	return strings.Join(parts, ",")
}
