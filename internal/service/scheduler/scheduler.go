package scheduler

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/platform"
	"github.com/oshokin/alarm-agent/internal/repository/ledger"
)

const (
	// TimeLayout formats the fire time shown in the notification body.
	TimeLayout = "15:04"
	// titlePrefix marks alarm notifications in the notification shade.
	titlePrefix = "⏰ "
)

// Notifier is the device notification platform.
type Notifier interface {
	// Schedule shows request at request.FireAt; an existing identifier is replaced.
	Schedule(ctx context.Context, request platform.Request) error
	// Cancel withdraws a scheduled notification. Unknown identifiers are not an error.
	Cancel(ctx context.Context, identifier string) error
}

// Scheduler issues platform requests for single alarms and records them in the ledger.
type Scheduler struct {
	// notifier is the platform notifications are sent to.
	notifier Notifier
	// ledger records what has been scheduled.
	ledger *ledger.Ledger
	// now returns the current time.
	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to compute occurrences.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler that talks to notifier and records into l.
func New(notifier Notifier, l *ledger.Ledger, opts ...Option) *Scheduler {
	s := &Scheduler{
		notifier: notifier,
		ledger:   l,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Ledger returns the ledger the scheduler records into.
func (s *Scheduler) Ledger() *ledger.Ledger {
	return s.ledger
}

// ScheduleAlarm schedules every upcoming occurrence of an approved alarm and
// returns how many notifications were issued. It does nothing when the alarm
// is not approved, has no upcoming occurrence, or already owns ledger entries.
// An identifier the ledger records for another alarm is skipped rather than
// replacing that alarm's notification.
func (s *Scheduler) ScheduleAlarm(ctx context.Context, a *domain.Alarm) (int, error) {
	if a == nil || a.Status != domain.StatusApproved {
		return 0, nil
	}

	ctx = logger.WithKV(ctx, "alarm_id", a.ID)

	if err := a.Validate(); err != nil {
		logger.WarnKV(ctx, "Skipping malformed alarm", "error", err)
		return 0, nil
	}

	occurrences := domain.Occurrences(a, s.now())
	if len(occurrences) == 0 {
		logger.DebugKV(ctx, "Alarm has no upcoming occurrence")
		return 0, nil
	}

	entries := s.ledger.Load(ctx)
	if entries.Has(a.ID) {
		return 0, nil
	}

	var (
		title     = titlePrefix + a.DisplayTitle()
		scheduled int
	)

	for i, fireAt := range occurrences {
		identifier := domain.Identifier(a.ID, i, len(occurrences))

		if other, taken := entries[identifier]; taken {
			logger.WarnKV(ctx, "Notification identifier belongs to another alarm",
				"identifier", identifier, "other_alarm_id", other.AlarmID)

			continue
		}

		request := platform.Request{
			Identifier: identifier,
			Title:      title,
			Body:       fireAt.Format(TimeLayout),
			AlarmID:    a.ID,
			FireAt:     fireAt,
		}

		if err := s.notifier.Schedule(ctx, request); err != nil {
			logger.WarnKV(ctx, "Failed to schedule notification",
				"identifier", identifier, "fire_at", fireAt, "error", err)

			continue
		}

		index := i
		if len(occurrences) == 1 {
			index = domain.SingleOccurrenceIndex
		}

		entries[identifier] = ledger.Entry{
			AlarmID:         a.ID,
			OccurrenceIndex: index,
			FireAt:          fireAt,
		}
		scheduled++
	}

	if scheduled == 0 {
		return 0, nil
	}

	if err := s.ledger.Save(ctx, entries); err != nil {
		return scheduled, fmt.Errorf("record alarm %s: %w", a.ID, err)
	}

	logger.InfoKV(ctx, "Alarm scheduled", "notifications", scheduled, "next", occurrences[0])

	return scheduled, nil
}

// CancelAlarm withdraws every notification the ledger holds for alarmID and
// returns how many were cancelled. Notifications the platform refused to
// cancel stay in the ledger so a later pass retries them.
func (s *Scheduler) CancelAlarm(ctx context.Context, alarmID string) (int, error) {
	ctx = logger.WithKV(ctx, "alarm_id", alarmID)

	entries := s.ledger.Load(ctx)

	identifiers := entries.ForAlarm(alarmID)
	if len(identifiers) == 0 {
		return 0, nil
	}

	cancelled := s.cancel(ctx, entries, identifiers)
	if cancelled == 0 {
		return 0, nil
	}

	if err := s.ledger.Save(ctx, entries); err != nil {
		return cancelled, fmt.Errorf("record cancellation of alarm %s: %w", alarmID, err)
	}

	logger.InfoKV(ctx, "Alarm cancelled", "notifications", cancelled)

	return cancelled, nil
}

// cancel withdraws identifiers and removes the successful ones from entries.
func (s *Scheduler) cancel(ctx context.Context, entries ledger.Entries, identifiers []string) int {
	var cancelled int

	for _, identifier := range identifiers {
		if err := s.notifier.Cancel(ctx, identifier); err != nil {
			logger.WarnKV(ctx, "Failed to cancel notification", "identifier", identifier, "error", err)
			continue
		}

		delete(entries, identifier)
		cancelled++
	}

	return cancelled
}
