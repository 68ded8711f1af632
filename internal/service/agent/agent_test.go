package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/repository/alarms"
	"github.com/oshokin/alarm-agent/internal/repository/kv"
)

const testOwner = "child-1"

var errTestFetch = errors.New("test fetch failure")

// fakeSource keeps alarms in memory.
type fakeSource struct {
	// alarms by id.
	alarms map[string]*domain.Alarm
	// fetchErr fails FetchAlarms when set.
	fetchErr error
	// fetches counts FetchAlarms calls.
	fetches int
	// mu protects the fields above.
	mu sync.Mutex
}

func newFakeSource(list ...*domain.Alarm) *fakeSource {
	s := &fakeSource{alarms: make(map[string]*domain.Alarm)}
	for _, a := range list {
		s.alarms[a.ID] = a
	}

	return s
}

func (s *fakeSource) FetchAlarms(_ context.Context, ownerID string) ([]*domain.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	var result []*domain.Alarm

	for _, a := range s.alarms {
		if a.ChildOwnerID == ownerID {
			result = append(result, a.Clone())
		}
	}

	return result, nil
}

func (s *fakeSource) GetAlarm(_ context.Context, id, ownerID string) (*domain.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[id]
	if !ok || a.ChildOwnerID != ownerID {
		return nil, alarms.ErrNotFound
	}

	return a.Clone(), nil
}

func (s *fakeSource) FetchPending(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	all, err := s.FetchAlarms(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var pending []*domain.Alarm

	for _, a := range all {
		if a.Status == domain.StatusPending {
			pending = append(pending, a)
		}
	}

	return pending, nil
}

func (s *fakeSource) SetStatus(_ context.Context, id, ownerID string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[id]
	if !ok || a.ChildOwnerID != ownerID {
		return alarms.ErrNotFound
	}

	a.Status = status

	return nil
}

func (s *fakeSource) status(id string) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.alarms[id].Status
}

func (s *fakeSource) put(a *domain.Alarm) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alarms[a.ID] = a
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetches
}

// alerts records desktop alerts.
type alerts struct {
	// titles shown so far.
	titles []string
	// mu protects titles.
	mu sync.Mutex
}

func (a *alerts) show(_ context.Context, title, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.titles = append(a.titles, title)

	return nil
}

func (a *alerts) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.titles)
}

func (a *alerts) count() int {
	return len(a.list())
}

func oneShot(id string, in time.Duration, status domain.Status) *domain.Alarm {
	return &domain.Alarm{
		ID:           id,
		ChildOwnerID: testOwner,
		FireTime:     time.Now().Add(in),
		Status:       status,
		Label:        "School",
	}
}

// newTestAgent starts an agent over an in-memory store; it must run inside a bubble.
func newTestAgent(t *testing.T, ctx context.Context, source *fakeSource, shown *alerts) *Agent {
	t.Helper()

	a, err := New(&Options{
		OwnerID:      testOwner,
		Source:       source,
		Store:        kv.NewMemoryStore(),
		SyncInterval: time.Hour,
		Alert:        shown.show,
		Rand:         rand.New(rand.NewPCG(1, 2)), //nolint:gosec // Deterministic test problems.
	})
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))

	return a
}

// TestNew_RequiresCollaborators rejects incomplete options.
func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(&Options{Source: newFakeSource(), Store: kv.NewMemoryStore()})
	require.ErrorIs(t, err, errOwnerRequired)

	_, err = New(&Options{OwnerID: testOwner, Store: kv.NewMemoryStore()})
	require.ErrorIs(t, err, errSourceRequired)

	_, err = New(&Options{OwnerID: testOwner, Source: newFakeSource()})
	require.ErrorIs(t, err, errStoreRequired)
}

// TestAgent_SyncRequiresStart refuses to touch the schedule before the queue is restored.
func TestAgent_SyncRequiresStart(t *testing.T) {
	t.Parallel()

	a, err := New(&Options{OwnerID: testOwner, Source: newFakeSource(), Store: kv.NewMemoryStore()})
	require.NoError(t, err)

	_, err = a.Sync(context.Background())
	require.ErrorIs(t, err, ErrNotStarted)
}

// TestAgent_SyncSchedulesAndDelivers schedules approved alarms and alerts when they fire.
func TestAgent_SyncSchedulesAndDelivers(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		source := newFakeSource(
			oneShot("1", time.Hour, domain.StatusApproved),
			oneShot("2", time.Hour, domain.StatusPending),
		)
		shown := new(alerts)
		a := newTestAgent(t, ctx, source, shown)

		defer a.Close()

		report, err := a.Sync(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Scheduled)
		require.Len(t, a.Pending(), 1)
		require.Equal(t, []string{"1"}, a.Ledger(ctx).AlarmIDs())

		time.Sleep(time.Hour + time.Second)
		synctest.Wait()

		require.Equal(t, []string{"⏰ School"}, shown.list())
		require.Empty(t, a.Pending())

		// The fired one-shot alarm is retired and has nothing left to schedule.
		report, err = a.Sync(ctx)
		require.NoError(t, err)
		require.Zero(t, report.Scheduled)
		require.Empty(t, a.Ledger(ctx))
	})
}

// TestAgent_SyncFetchFailure leaves the schedule untouched.
func TestAgent_SyncFetchFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		source := newFakeSource(oneShot("1", time.Hour, domain.StatusApproved))
		a := newTestAgent(t, ctx, source, new(alerts))

		defer a.Close()

		_, err := a.Sync(ctx)
		require.NoError(t, err)

		source.mu.Lock()
		source.fetchErr = errTestFetch
		source.mu.Unlock()

		_, err = a.Sync(ctx)
		require.ErrorIs(t, err, errTestFetch)
		require.Equal(t, []string{"1"}, a.Ledger(ctx).AlarmIDs())
		require.Len(t, a.Pending(), 1)
	})
}

// TestAgent_RetiresExhaustedRepeatingAlarm keeps a weekly alarm going past its first batch.
func TestAgent_RetiresExhaustedRepeatingAlarm(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		daily := &domain.Alarm{
			ID:           "7",
			ChildOwnerID: testOwner,
			FireTime:     time.Date(2025, time.May, 1, 7, 0, 0, 0, time.UTC),
			RepeatDays:   []int{0, 1, 2, 3, 4, 5, 6},
			Status:       domain.StatusApproved,
		}

		shown := new(alerts)
		a := newTestAgent(t, ctx, newFakeSource(daily), shown)

		defer a.Close()

		report, err := a.Sync(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.MaxOccurrences, report.Scheduled)

		time.Sleep(9 * 24 * time.Hour)
		synctest.Wait()

		require.Equal(t, domain.MaxOccurrences, shown.count())
		require.Empty(t, a.Pending())

		report, err = a.Sync(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.MaxOccurrences, report.Scheduled)
		require.Len(t, a.Pending(), domain.MaxOccurrences)
	})
}

// TestAgent_RetireUsesPassClock judges exhaustion by the same clock the pass schedules with.
func TestAgent_RetireUsesPassClock(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		start := time.Now()
		clock := start

		a, err := New(&Options{
			OwnerID:      testOwner,
			Source:       newFakeSource(oneShot("1", 3*time.Hour, domain.StatusApproved)),
			Store:        kv.NewMemoryStore(),
			SyncInterval: time.Hour,
			Alert:        new(alerts).show,
			Now:          func() time.Time { return clock },
		})
		require.NoError(t, err)
		require.NoError(t, a.Start(ctx))

		defer a.Close()

		report, err := a.Sync(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Scheduled)

		// The pass clock has moved past the fire time while the timer has not fired yet.
		clock = start.Add(4 * time.Hour)

		report, err = a.Sync(ctx)
		require.NoError(t, err)
		require.Zero(t, report.Scheduled)
		require.Empty(t, a.Ledger(ctx))
		require.Empty(t, a.Pending())
	})
}

// TestAgent_Respond approves into the schedule and rejects answered requests.
func TestAgent_Respond(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		source := newFakeSource(
			oneShot("1", time.Hour, domain.StatusPending),
			oneShot("2", time.Hour, domain.StatusPending),
		)
		a := newTestAgent(t, ctx, source, new(alerts))

		defer a.Close()

		require.NoError(t, a.Respond(ctx, "1", true))
		require.Equal(t, domain.StatusApproved, source.status("1"))
		require.Equal(t, []string{"1"}, a.Ledger(ctx).AlarmIDs())

		require.NoError(t, a.Respond(ctx, "2", false))
		require.Equal(t, domain.StatusDeclined, source.status("2"))
		require.Equal(t, []string{"1"}, a.Ledger(ctx).AlarmIDs())

		require.ErrorIs(t, a.Respond(ctx, "1", false), ErrNotPending)
		require.ErrorIs(t, a.Respond(ctx, "missing", true), alarms.ErrNotFound)

		requests, err := a.Requests(ctx)
		require.NoError(t, err)
		require.Empty(t, requests)
	})
}

// TestAgent_RespondWithoutSchedule only updates the remote status.
func TestAgent_RespondWithoutSchedule(t *testing.T) {
	t.Parallel()

	source := newFakeSource(oneShot("1", time.Hour, domain.StatusPending))

	a, err := New(&Options{OwnerID: testOwner, Source: source, Store: kv.NewMemoryStore()})
	require.NoError(t, err)

	require.NoError(t, a.Respond(context.Background(), "1", true))
	require.Equal(t, domain.StatusApproved, source.status("1"))
	require.Empty(t, a.Ledger(context.Background()))
}

// solve answers the generated problem, failing the first attempt on purpose.
func solve(t *testing.T) (PromptFunc, *int) {
	t.Helper()

	attempts := new(int)

	return func(_ context.Context, question string) (string, error) {
		*attempts++
		if *attempts == 1 {
			return "not a number", nil
		}

		fields := strings.Fields(question)
		require.Len(t, fields, 5)

		left, err := strconv.Atoi(fields[0])
		require.NoError(t, err)

		right, err := strconv.Atoi(fields[2])
		require.NoError(t, err)

		if fields[1] == "-" {
			return strconv.Itoa(left - right), nil
		}

		return strconv.Itoa(left + right), nil
	}, attempts
}

// TestAgent_DismissWithProof asks until solved, then retires the alarm.
func TestAgent_DismissWithProof(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		alarm := oneShot("1", time.Hour, domain.StatusApproved)
		alarm.ProofOfAwakeRequired = true

		source := newFakeSource(alarm)
		a := newTestAgent(t, ctx, source, new(alerts))

		defer a.Close()

		_, err := a.Sync(ctx)
		require.NoError(t, err)

		prompt, attempts := solve(t)
		require.NoError(t, a.Dismiss(ctx, "1", prompt))
		require.Equal(t, 2, *attempts)
		require.Equal(t, domain.StatusTriggered, source.status("1"))
		require.Empty(t, a.Ledger(ctx))
		require.Empty(t, a.Pending())
	})
}

// TestAgent_DismissNeedsPrompt refuses to dismiss a proof alarm without a way to answer.
func TestAgent_DismissNeedsPrompt(t *testing.T) {
	t.Parallel()

	alarm := oneShot("1", time.Hour, domain.StatusApproved)
	alarm.ProofOfAwakeRequired = true
	source := newFakeSource(alarm)

	a, err := New(&Options{OwnerID: testOwner, Source: source, Store: kv.NewMemoryStore()})
	require.NoError(t, err)

	require.ErrorIs(t, a.Dismiss(context.Background(), "1", nil), errPromptRequired)
	require.Equal(t, domain.StatusApproved, source.status("1"))

	plain := oneShot("2", time.Hour, domain.StatusApproved)
	source.put(plain)

	require.NoError(t, a.Dismiss(context.Background(), "2", nil))
	require.Equal(t, domain.StatusTriggered, source.status("2"))
}

// TestAgent_Reschedule applies an edit that a plain pass only reports.
func TestAgent_Reschedule(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		source := newFakeSource(oneShot("1", time.Hour, domain.StatusApproved))
		a := newTestAgent(t, ctx, source, new(alerts))

		defer a.Close()

		_, err := a.Sync(ctx)
		require.NoError(t, err)

		edited := oneShot("1", 3*time.Hour, domain.StatusApproved)
		source.put(edited)

		report, err := a.Sync(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"1"}, report.Stale)
		require.True(t, a.Pending()[0].FireAt.Equal(time.Now().Add(time.Hour)))

		report, err = a.Reschedule(ctx, "1")
		require.NoError(t, err)
		require.Empty(t, report.Stale)
		require.Equal(t, 1, report.Scheduled)
		require.Len(t, a.Pending(), 1)
		require.True(t, a.Pending()[0].FireAt.Equal(edited.FireTime))

		cancelled, err := a.Cancel(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, 1, cancelled)
		require.Empty(t, a.Pending())
	})
}

// TestAgent_Run reconciles at start and on every tick until cancelled.
func TestAgent_Run(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		source := newFakeSource(oneShot("1", 90*time.Minute, domain.StatusApproved))

		a, err := New(&Options{
			OwnerID:      testOwner,
			Source:       source,
			Store:        kv.NewMemoryStore(),
			SyncInterval: time.Hour,
			Alert:        new(alerts).show,
		})
		require.NoError(t, err)

		done := make(chan error, 1)

		go func() { done <- a.Run(ctx) }()

		synctest.Wait()
		require.Equal(t, 1, source.fetchCount())
		require.Len(t, a.Pending(), 1)

		time.Sleep(2*time.Hour + time.Second)
		synctest.Wait()
		require.Equal(t, 3, source.fetchCount())

		cancel()
		require.NoError(t, <-done)
	})
}
