package integration

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-agent/internal/config"
	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/repository/alarms"
	"github.com/oshokin/alarm-agent/internal/service/agent"
)

const ownerID = "child-1"

// alertLog collects alert titles from deliveries.
type alertLog struct {
	// titles shown so far.
	titles []string
	// mu protects titles.
	mu sync.Mutex
}

func (l *alertLog) show(_ context.Context, title, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.titles = append(l.titles, title)

	return nil
}

func (l *alertLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.titles)
}

// openAgent wires an agent over the SQLite store and file source described by cfg.
func openAgent(t *testing.T, ctx context.Context, cfg *config.Config, alert agent.AlertFunc) *agent.Agent {
	t.Helper()

	store, closeStore, err := agent.OpenStore(ctx, cfg.Store)
	require.NoError(t, err)
	t.Cleanup(closeStore)

	source, closeSource, err := agent.OpenSource(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(closeSource)

	a, err := agent.New(&agent.Options{
		OwnerID:      cfg.OwnerID,
		Source:       source,
		Store:        store,
		LockFile:     cfg.LockFile,
		SyncInterval: cfg.SyncInterval,
		QueueLimit:   cfg.QueueLimit,
		Alert:        alert,
	})
	require.NoError(t, err)

	return a
}

// TestAgent_EndToEnd schedules from a YAML source into SQLite, delivers, survives a
// restart and sweeps a declined alarm.
func TestAgent_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "alarm-agent.yaml")

	require.NoError(t, config.Save(cfgPath, &config.Config{
		OwnerID:  ownerID,
		LockFile: filepath.Join(dir, "agent.lock"),
		Source:   config.SourceConfig{Type: config.SourceFile, File: filepath.Join(dir, "alarms.yaml")},
		Store:    config.StoreConfig{Type: config.StoreSQLite, Path: filepath.Join(dir, "store.db")},
	}))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	now := time.Now()
	source := alarms.NewFileSource(cfg.Source.File)
	require.NoError(t, source.Put(
		alarms.Record{ID: "soon", ChildID: ownerID, AlarmTime: now.Add(1500 * time.Millisecond), Label: "Soon", Status: "approved"},
		alarms.Record{ID: "weekly", ChildID: ownerID, AlarmTime: now, RepeatPattern: "1,3,5", Status: "approved"},
		alarms.Record{ID: "declined", ChildID: ownerID, AlarmTime: now.Add(time.Hour), Status: "declined"},
		alarms.Record{ID: "sibling", ChildID: "child-2", AlarmTime: now.Add(time.Hour), Status: "approved"},
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shown := new(alertLog)
	first := openAgent(t, ctx, cfg, shown.show)
	require.NoError(t, first.Start(ctx))

	report, err := first.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Desired)
	require.Equal(t, 1+domain.MaxOccurrences, report.Scheduled)
	require.Equal(t, []string{"soon", "weekly"}, first.Ledger(ctx).AlarmIDs())

	require.Eventually(t, func() bool {
		return slices.Equal(shown.list(), []string{"⏰ Soon"})
	}, 5*time.Second, 50*time.Millisecond)

	first.Close()

	second := openAgent(t, ctx, cfg, shown.show)
	require.NoError(t, second.Start(ctx))

	defer second.Close()

	require.Len(t, second.Pending(), domain.MaxOccurrences)

	report, err = second.Sync(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Scheduled)
	require.Equal(t, []string{"weekly"}, second.Ledger(ctx).AlarmIDs())

	require.NoError(t, source.SetStatus(ctx, "weekly", ownerID, domain.StatusDeclined))

	report, err = second.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.MaxOccurrences, report.Cancelled)
	require.Empty(t, second.Ledger(ctx))
	require.Empty(t, second.Pending())
}
