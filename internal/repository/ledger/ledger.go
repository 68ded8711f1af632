package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/repository/kv"
)

// Key is the store key the ledger is persisted under.
const Key = "@alarm_scheduled_ids"

// Entry describes one scheduled platform notification.
type Entry struct {
	// AlarmID is the alarm the notification belongs to.
	AlarmID string
	// OccurrenceIndex is the position in the alarm's occurrence list,
	// or alarm.SingleOccurrenceIndex for a lone occurrence.
	OccurrenceIndex int
	// FireAt is when the notification fires. Zero for entries migrated from
	// the boolean format.
	FireAt time.Time
}

// Entries maps notification identifiers to their entries.
type Entries map[string]Entry

// ForAlarm returns the sorted identifiers that belong to alarmID.
func (e Entries) ForAlarm(alarmID string) []string {
	var identifiers []string

	for identifier, entry := range e {
		if entry.AlarmID == alarmID {
			identifiers = append(identifiers, identifier)
		}
	}

	slices.Sort(identifiers)

	return identifiers
}

// Has reports whether any entry belongs to alarmID.
func (e Entries) Has(alarmID string) bool {
	for _, entry := range e {
		if entry.AlarmID == alarmID {
			return true
		}
	}

	return false
}

// AlarmIDs returns the sorted, distinct alarm ids present in the ledger.
func (e Entries) AlarmIDs() []string {
	seen := make(map[string]struct{}, len(e))
	for _, entry := range e {
		seen[entry.AlarmID] = struct{}{}
	}

	return slices.Sorted(maps.Keys(seen))
}

// FireTimes returns the fire times recorded for alarmID ordered by occurrence.
// Entries without a recorded time are skipped.
func (e Entries) FireTimes(alarmID string) []time.Time {
	var times []time.Time

	for _, entry := range e {
		if entry.AlarmID == alarmID && !entry.FireAt.IsZero() {
			times = append(times, entry.FireAt)
		}
	}

	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	return times
}

// Clone returns a shallow copy that can be modified independently.
func (e Entries) Clone() Entries {
	if e == nil {
		return make(Entries)
	}

	return maps.Clone(e)
}

// Ledger loads and saves Entries through a kv.Store.
// It does no locking: callers run one pass at a time.
type Ledger struct {
	// store is the backing key-value store.
	store kv.Store
}

// New creates a ledger persisted in store.
func New(store kv.Store) *Ledger {
	return &Ledger{
		store: store,
	}
}

// Load returns the recorded entries. Read and decode failures are logged and
// yield an empty set: the next reconciliation pass rebuilds the schedule.
func (l *Ledger) Load(ctx context.Context) Entries {
	raw, ok, err := l.store.Get(ctx, Key)
	if err != nil {
		logger.WarnKV(ctx, "Failed to read ledger, starting empty", "error", err)
		return make(Entries)
	}

	if !ok || raw == "" {
		return make(Entries)
	}

	entries, err := decode(ctx, []byte(raw))
	if err != nil {
		logger.WarnKV(ctx, "Failed to decode ledger, starting empty", "error", err)
		return make(Entries)
	}

	return entries
}

// Save replaces the recorded entries.
func (l *Ledger) Save(ctx context.Context, entries Entries) error {
	data, err := encode(entries)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	if err = l.store.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}

	return nil
}
