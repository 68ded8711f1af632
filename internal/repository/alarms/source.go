package alarms

import (
	"context"
	"errors"
	"time"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/logger"
)

// ErrNotFound is returned when no alarm with the given id belongs to the owner.
var ErrNotFound = errors.New("alarm not found")

// Source is the remote alarm store.
type Source interface {
	// FetchAlarms returns every alarm addressed to ownerID.
	FetchAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error)
	// GetAlarm returns a single alarm of ownerID.
	GetAlarm(ctx context.Context, id, ownerID string) (*domain.Alarm, error)
	// FetchPending returns the requests ownerID has not answered yet, newest first.
	FetchPending(ctx context.Context, ownerID string) ([]*domain.Alarm, error)
	// SetStatus changes the status of an alarm of ownerID.
	SetStatus(ctx context.Context, id, ownerID string, status domain.Status) error
}

// Record is the stored form of an alarm, one row of the alarms table.
type Record struct {
	ID                   string    `db:"id"                      json:"id"                      yaml:"id"`
	ParentID             string    `db:"parent_id"               json:"parent_id"               yaml:"parent_id,omitempty"`
	ChildID              string    `db:"child_id"                json:"child_id"                yaml:"child_id"`
	AlarmTime            time.Time `db:"alarm_time"              json:"alarm_time"              yaml:"alarm_time"`
	Label                string    `db:"label"                   json:"label"                   yaml:"label,omitempty"`
	RepeatPattern        string    `db:"repeat_pattern"          json:"repeat_pattern"          yaml:"repeat_pattern,omitempty"`
	Status               string    `db:"status"                  json:"status"                  yaml:"status"`
	ProofOfAwakeRequired bool      `db:"proof_of_awake_required" json:"proof_of_awake_required" yaml:"proof_of_awake_required,omitempty"`
	CreatedAt            time.Time `db:"created_at"              json:"created_at"              yaml:"created_at,omitempty"`
}

// ToAlarm converts the record into the domain model.
// A malformed repeat pattern yields an alarm that fails validation,
// so the scheduler skips it instead of firing it once.
func (r *Record) ToAlarm(ctx context.Context) *domain.Alarm {
	days, err := domain.ParseRepeatPattern(r.RepeatPattern)
	if err != nil {
		logger.WarnKV(ctx, "Malformed repeat pattern", "alarm_id", r.ID, "error", err)

		days = []int{domain.InvalidWeekday}
	}

	return &domain.Alarm{
		ID:                   r.ID,
		ChildOwnerID:         r.ChildID,
		ParentID:             r.ParentID,
		FireTime:             r.AlarmTime,
		RepeatDays:           days,
		Status:               domain.Status(r.Status),
		Label:                r.Label,
		ProofOfAwakeRequired: r.ProofOfAwakeRequired,
	}
}

// FromAlarm builds the stored form of a.
func FromAlarm(a *domain.Alarm) Record {
	return Record{
		ID:                   a.ID,
		ParentID:             a.ParentID,
		ChildID:              a.ChildOwnerID,
		AlarmTime:            a.FireTime,
		Label:                a.Label,
		RepeatPattern:        domain.FormatRepeatPattern(a.RepeatDays),
		Status:               string(a.Status),
		ProofOfAwakeRequired: a.ProofOfAwakeRequired,
	}
}

func toAlarms(ctx context.Context, records []Record) []*domain.Alarm {
	result := make([]*domain.Alarm, 0, len(records))
	for i := range records {
		result = append(result, records[i].ToAlarm(ctx))
	}

	return result
}
