package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/alarm-agent/internal/api/grpc/health"
	"github.com/oshokin/alarm-agent/internal/config"
	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/platform/queue"
	"github.com/oshokin/alarm-agent/internal/repository/alarms"
	"github.com/oshokin/alarm-agent/internal/repository/kv"
	"github.com/oshokin/alarm-agent/internal/repository/ledger"
	"github.com/oshokin/alarm-agent/internal/service/desktop"
	"github.com/oshokin/alarm-agent/internal/service/lock"
	"github.com/oshokin/alarm-agent/internal/service/scheduler"
)

// AlertFunc shows a fired notification to the user.
type AlertFunc func(ctx context.Context, title, body string) error

// Options wires an Agent.
type Options struct {
	// OwnerID is the device owner whose alarms are scheduled.
	OwnerID string
	// Source is the remote alarm store.
	Source alarms.Source
	// Store keeps the ledger and the pending notifications.
	Store kv.Store
	// LockFile serialises passes across processes; empty disables it.
	LockFile string
	// SyncInterval is the pause between passes in Run.
	SyncInterval time.Duration
	// QueueLimit caps pending notifications.
	QueueLimit int
	// HealthAddress enables the gRPC health endpoint in Run.
	HealthAddress string
	// Alert shows deliveries; defaults to desktop.Alert.
	Alert AlertFunc
	// Rand drives proof-of-awake problems; nil uses the global source.
	Rand *rand.Rand
	// Now overrides the clock passes compute occurrences with.
	Now func() time.Time
}

var (
	// ErrNotStarted is returned by operations that need the local schedule
	// before Start succeeded.
	ErrNotStarted = errors.New("agent is not started")
	// errOwnerRequired is returned when no owner is configured.
	errOwnerRequired = errors.New("owner id must be provided")
	// errSourceRequired is returned when no alarm source is configured.
	errSourceRequired = errors.New("alarm source must be provided")
	// errStoreRequired is returned when no store is configured.
	errStoreRequired = errors.New("store must be provided")
)

// Agent schedules the alarms of one owner on this device.
type Agent struct {
	// opts are the validated options.
	opts Options
	// queue is the local notification platform.
	queue *queue.Queue
	// scheduler issues and withdraws notifications.
	scheduler *scheduler.Scheduler
	// reconciler converges the schedule on the remote alarms.
	reconciler *scheduler.Reconciler
	// health reports pass outcomes when HealthAddress is set.
	health *health.Server

	// mu serialises passes and the fields below.
	mu sync.Mutex
	// started is set once the queue is restored and the lock is held.
	started bool
	// release drops the cross-process lock.
	release lock.Release
}

// New creates an agent. Nothing is touched until Start.
func New(opts *Options) (*Agent, error) {
	switch {
	case opts.OwnerID == "":
		return nil, errOwnerRequired
	case opts.Source == nil:
		return nil, errSourceRequired
	case opts.Store == nil:
		return nil, errStoreRequired
	}

	a := &Agent{opts: *opts}

	if a.opts.SyncInterval <= 0 {
		a.opts.SyncInterval = config.DefaultSyncInterval
	}

	if a.opts.Alert == nil {
		a.opts.Alert = desktop.Alert
	}

	a.queue = queue.New(a.opts.Store, a.deliver, queue.WithLimit(a.opts.QueueLimit))
	a.scheduler = scheduler.New(a.queue, ledger.New(a.opts.Store), scheduler.WithClock(a.opts.Now))
	a.reconciler = scheduler.NewReconciler(a.scheduler)

	if a.opts.HealthAddress != "" {
		a.health = health.NewServer()
	}

	return a, nil
}

// Start takes the cross-process lock and restores the notification queue.
// The queue keeps its timers until ctx is done or Close is called.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}

	if a.opts.LockFile != "" {
		release, err := lock.Acquire(ctx, a.opts.LockFile)
		if err != nil {
			return err
		}

		a.release = release
	}

	if err := a.queue.Start(ctx); err != nil {
		a.releaseLocked()
		return fmt.Errorf("start notification queue: %w", err)
	}

	a.started = true

	return nil
}

// Close stops the timers and releases the lock. Pending notifications stay persisted.
func (a *Agent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}

	a.queue.Stop()
	a.releaseLocked()
	a.started = false
}

// Sync runs one reconciliation pass. A failed fetch skips the pass and
// leaves the schedule untouched.
func (a *Agent) Sync(ctx context.Context) (*scheduler.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.syncLocked(ctx)
}

// Run starts the agent, reconciles immediately and then every SyncInterval
// until ctx is cancelled. The health endpoint, if configured, runs alongside.
func (a *Agent) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "alarm-agent")

	if err := a.Start(ctx); err != nil {
		return err
	}

	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	if a.health != nil {
		g.Go(func() error {
			return a.health.ListenAndServe(ctx, a.opts.HealthAddress)
		})
	}

	g.Go(func() error {
		a.loop(ctx)
		return nil
	})

	return g.Wait()
}

// loop runs passes until ctx is cancelled.
func (a *Agent) loop(ctx context.Context) {
	logger.InfoKV(ctx, "Reconciling alarms",
		"owner_id", a.opts.OwnerID, "interval", a.opts.SyncInterval.String())

	a.pass(ctx)

	ticker := time.NewTicker(a.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return
		case <-ticker.C:
			a.pass(ctx)
		}
	}
}

// pass runs Sync and reports its outcome to the health endpoint.
func (a *Agent) pass(ctx context.Context) {
	_, err := a.Sync(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Reconciliation pass failed", "error", err)
	}

	if a.health != nil {
		a.health.SetServing(err == nil)
	}
}

func (a *Agent) syncLocked(ctx context.Context) (*scheduler.Report, error) {
	if !a.started {
		return nil, ErrNotStarted
	}

	fetched, err := a.opts.Source.FetchAlarms(ctx, a.opts.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("fetch alarms: %w", err)
	}

	a.retireExhaustedLocked(ctx)

	return a.reconciler.Sync(ctx, fetched, a.opts.OwnerID)
}

// retireExhaustedLocked cancels alarms with no recorded fire time still
// ahead, so the following pass schedules their next occurrences. Entries
// migrated from the boolean format have no fire time and are retired too.
func (a *Agent) retireExhaustedLocked(ctx context.Context) {
	entries := a.scheduler.Ledger().Load(ctx)
	now := a.scheduler.Now()

	for _, alarmID := range entries.AlarmIDs() {
		exhausted := true

		for _, fireAt := range entries.FireTimes(alarmID) {
			if fireAt.After(now) {
				exhausted = false
				break
			}
		}

		if !exhausted {
			continue
		}

		if _, err := a.scheduler.CancelAlarm(ctx, alarmID); err != nil {
			logger.WarnKV(ctx, "Failed to retire fired alarm", "alarm_id", alarmID, "error", err)
		}
	}
}

func (a *Agent) releaseLocked() {
	if a.release != nil {
		a.release()
		a.release = nil
	}
}
