package agent

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/domain/proof"
	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/platform"
	"github.com/oshokin/alarm-agent/internal/repository/ledger"
	"github.com/oshokin/alarm-agent/internal/service/scheduler"
)

// PromptFunc asks the user question and returns the typed answer.
type PromptFunc func(ctx context.Context, question string) (string, error)

var (
	// ErrNotPending is returned when answering a request that was already answered.
	ErrNotPending = errors.New("alarm request is not pending")
	// errPromptRequired is returned when a proof is needed but nobody can answer it.
	errPromptRequired = errors.New("alarm requires proof of being awake")
)

// Requests returns the alarm requests still waiting for an answer.
func (a *Agent) Requests(ctx context.Context) ([]*domain.Alarm, error) {
	return a.opts.Source.FetchPending(ctx, a.opts.OwnerID)
}

// Respond approves or declines a pending request and updates the local
// schedule when this process owns it.
func (a *Agent) Respond(ctx context.Context, alarmID string, approve bool) error {
	ctx = logger.WithKV(ctx, "alarm_id", alarmID)

	alarm, err := a.opts.Source.GetAlarm(ctx, alarmID, a.opts.OwnerID)
	if err != nil {
		return err
	}

	if alarm.Status != domain.StatusPending {
		return fmt.Errorf("respond to alarm %s (%s): %w", alarmID, alarm.Status, ErrNotPending)
	}

	status := domain.StatusDeclined
	if approve {
		status = domain.StatusApproved
	}

	if err = a.opts.Source.SetStatus(ctx, alarmID, a.opts.OwnerID, status); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Alarm request answered", "status", status)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		logger.Info(ctx, "Schedule is owned by another agent process, it applies the answer on its next pass")
		return nil
	}

	if !approve {
		_, err = a.scheduler.CancelAlarm(ctx, alarmID)
		return err
	}

	alarm.Status = status
	_, err = a.scheduler.ScheduleAlarm(ctx, alarm)

	return err
}

// Dismiss marks a fired alarm as triggered. Alarms that require proof of
// being awake keep asking new problems through prompt until one is solved.
// The schedule is reconciled afterwards when this process owns it.
func (a *Agent) Dismiss(ctx context.Context, alarmID string, prompt PromptFunc) error {
	ctx = logger.WithKV(ctx, "alarm_id", alarmID)

	alarm, err := a.opts.Source.GetAlarm(ctx, alarmID, a.opts.OwnerID)
	if err != nil {
		return err
	}

	if alarm.ProofOfAwakeRequired {
		if err = a.proveAwake(ctx, prompt); err != nil {
			return err
		}
	}

	if err = a.opts.Source.SetStatus(ctx, alarmID, a.opts.OwnerID, domain.StatusTriggered); err != nil {
		return err
	}

	logger.Info(ctx, "Alarm dismissed")

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	_, err = a.syncLocked(ctx)

	return err
}

// Reschedule withdraws every notification of alarmID and runs a pass, so an
// edited alarm gets notifications for its current time and repeat days.
func (a *Agent) Reschedule(ctx context.Context, alarmID string) (*scheduler.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil, ErrNotStarted
	}

	if _, err := a.scheduler.CancelAlarm(ctx, alarmID); err != nil {
		return nil, err
	}

	return a.syncLocked(ctx)
}

// Cancel withdraws every notification of alarmID without running a pass.
func (a *Agent) Cancel(ctx context.Context, alarmID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return 0, ErrNotStarted
	}

	return a.scheduler.CancelAlarm(ctx, alarmID)
}

// Ledger returns what the ledger records as scheduled.
func (a *Agent) Ledger(ctx context.Context) ledger.Entries {
	return a.scheduler.Ledger().Load(ctx)
}

// Pending returns the armed local notifications.
func (a *Agent) Pending() []platform.Request {
	return a.queue.Pending()
}

// proveAwake loops until prompt returns a correct answer or fails.
func (a *Agent) proveAwake(ctx context.Context, prompt PromptFunc) error {
	if prompt == nil {
		return errPromptRequired
	}

	for {
		problem := proof.Generate(a.opts.Rand)

		answer, err := prompt(ctx, problem.Question+" = ?")
		if err != nil {
			return fmt.Errorf("read answer: %w", err)
		}

		if problem.Check(answer) {
			return nil
		}

		logger.Warn(ctx, "Wrong answer, try another one")
	}
}

// deliver handles a fired notification.
func (a *Agent) deliver(ctx context.Context, delivery platform.Delivery) {
	ctx = logger.WithKV(ctx, "alarm_id", delivery.AlarmID, "identifier", delivery.Identifier)

	logger.InfoKV(ctx, "Alarm fired", "title", delivery.Title, "body", delivery.Body)

	if err := a.opts.Alert(ctx, delivery.Title, delivery.Body); err != nil {
		logger.WarnKV(ctx, "Failed to show desktop alert", "error", err)
	}
}
