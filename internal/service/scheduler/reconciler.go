package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/logger"
)

// Report summarises one reconciliation pass.
type Report struct {
	// Desired is the number of approved alarms owned by the owner.
	Desired int
	// Cancelled is the number of orphaned notifications withdrawn.
	Cancelled int
	// Scheduled is the number of notifications newly issued.
	Scheduled int
	// Stale lists desired alarms whose recorded fire times no longer match.
	Stale []string
}

// Reconciler converges the ledger and the platform on an owner's approved alarms.
// Callers must not run two passes for the same owner concurrently.
type Reconciler struct {
	// scheduler issues and withdraws notifications.
	scheduler *Scheduler
}

// NewReconciler creates a reconciler driving s.
func NewReconciler(s *Scheduler) *Reconciler {
	return &Reconciler{
		scheduler: s,
	}
}

// Sync makes the ledger hold exactly the approved alarms of ownerID that have
// an upcoming occurrence. Orphans are swept before anything is added.
//
// An approved alarm that already owns entries is left untouched even if its
// time or repeat days changed; such alarms are reported as stale and the
// caller has to cancel them before the next pass to apply the edit.
func (r *Reconciler) Sync(ctx context.Context, alarms []*domain.Alarm, ownerID string) (*Report, error) {
	ctx = logger.WithKV(ctx, "owner_id", ownerID)

	desired := desiredAlarms(alarms, ownerID)
	report := &Report{Desired: len(desired)}

	var errs []error

	cancelled, err := r.sweep(ctx, desired)
	report.Cancelled = cancelled

	if err != nil {
		errs = append(errs, err)
	}

	report.Stale = r.staleAlarms(ctx, desired)

	for _, a := range desired {
		scheduled, err := r.scheduler.ScheduleAlarm(ctx, a)
		report.Scheduled += scheduled

		if err != nil {
			errs = append(errs, err)
		}
	}

	logger.InfoKV(ctx, "Alarm notifications reconciled",
		"desired", report.Desired, "cancelled", report.Cancelled,
		"scheduled", report.Scheduled, "stale", len(report.Stale))

	return report, errors.Join(errs...)
}

// sweep withdraws every ledger entry whose alarm is not desired.
func (r *Reconciler) sweep(ctx context.Context, desired []*domain.Alarm) (int, error) {
	entries := r.scheduler.ledger.Load(ctx)

	wanted := make(map[string]struct{}, len(desired))
	for _, a := range desired {
		wanted[a.ID] = struct{}{}
	}

	var orphans []string

	for identifier, entry := range entries {
		if _, ok := wanted[entry.AlarmID]; !ok {
			orphans = append(orphans, identifier)
		}
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	slices.Sort(orphans)

	cancelled := r.scheduler.cancel(ctx, entries, orphans)
	if cancelled == 0 {
		return 0, nil
	}

	if err := r.scheduler.ledger.Save(ctx, entries); err != nil {
		return cancelled, fmt.Errorf("record sweep: %w", err)
	}

	return cancelled, nil
}

// staleAlarms lists desired alarms whose recorded upcoming fire times are not
// among their current occurrences, which happens after an edit that was not
// followed by a cancellation.
func (r *Reconciler) staleAlarms(ctx context.Context, desired []*domain.Alarm) []string {
	entries := r.scheduler.ledger.Load(ctx)
	now := r.scheduler.now()

	var stale []string

	for _, a := range desired {
		recorded := entries.FireTimes(a.ID)
		if len(recorded) == 0 {
			continue
		}

		current := domain.Occurrences(a, now)

		for _, fireAt := range recorded {
			if !fireAt.After(now) {
				continue
			}

			if !slices.ContainsFunc(current, fireAt.Equal) {
				stale = append(stale, a.ID)

				logger.WarnKV(ctx, "Scheduled notifications no longer match the alarm; cancel it to apply the change",
					"alarm_id", a.ID, "recorded", fireAt.Format(time.RFC3339))

				break
			}
		}
	}

	return stale
}

// desiredAlarms returns the approved alarms of ownerID ordered by id.
func desiredAlarms(alarms []*domain.Alarm, ownerID string) []*domain.Alarm {
	desired := make([]*domain.Alarm, 0, len(alarms))
	seen := make(map[string]struct{}, len(alarms))

	for _, a := range alarms {
		if a == nil || a.ChildOwnerID != ownerID || a.Status != domain.StatusApproved {
			continue
		}

		if _, dup := seen[a.ID]; dup {
			continue
		}

		seen[a.ID] = struct{}{}
		desired = append(desired, a)
	}

	slices.SortFunc(desired, func(a, b *domain.Alarm) int {
		return strings.Compare(a.ID, b.ID)
	})

	return desired
}
