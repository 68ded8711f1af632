package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/logger"
)

const (
	fieldAlarmID         = "alarm_id"
	fieldOccurrenceIndex = "occurrence_index"
	fieldFireAt          = "fire_at"
)

var (
	// errMissingAlarmID is returned for structured entries without an alarm id.
	errMissingAlarmID = errors.New("entry has no alarm id")
	// errUnparsableIdentifier is returned for legacy entries whose key is not an alarm identifier.
	errUnparsableIdentifier = errors.New("identifier does not name an alarm")
	// errUnsupportedValue is returned for values that are neither objects nor true.
	errUnsupportedValue = errors.New("unsupported entry value")
)

// encode renders entries as a JSON object keyed by identifier.
func encode(entries Entries) ([]byte, error) {
	root := &structpb.Struct{
		Fields: make(map[string]*structpb.Value, len(entries)),
	}

	for identifier, entry := range entries {
		fields := map[string]*structpb.Value{
			fieldAlarmID:         structpb.NewStringValue(entry.AlarmID),
			fieldOccurrenceIndex: structpb.NewNumberValue(float64(entry.OccurrenceIndex)),
		}

		if !entry.FireAt.IsZero() {
			fields[fieldFireAt] = structpb.NewStringValue(entry.FireAt.UTC().Format(time.RFC3339Nano))
		}

		root.Fields[identifier] = structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}

	return protojson.Marshal(root)
}

// decode parses the JSON object produced by encode. It also accepts the
// older {"alarm-42-0": true} form. Individual bad entries are logged and dropped.
func decode(ctx context.Context, data []byte) (Entries, error) {
	var root structpb.Struct
	if err := protojson.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	entries := make(Entries, len(root.GetFields()))

	for identifier, value := range root.GetFields() {
		entry, err := decodeEntry(identifier, value)
		if err != nil {
			logger.WarnKV(ctx, "Dropping unreadable ledger entry", "identifier", identifier, "error", err)
			continue
		}

		entries[identifier] = entry
	}

	return entries, nil
}

// decodeEntry converts one JSON value into an Entry.
func decodeEntry(identifier string, value *structpb.Value) (Entry, error) {
	switch kind := value.GetKind().(type) {
	case *structpb.Value_StructValue:
		fields := kind.StructValue.GetFields()

		alarmID := fields[fieldAlarmID].GetStringValue()
		if alarmID == "" {
			return Entry{}, errMissingAlarmID
		}

		entry := Entry{
			AlarmID:         alarmID,
			OccurrenceIndex: int(fields[fieldOccurrenceIndex].GetNumberValue()),
		}

		if raw := fields[fieldFireAt].GetStringValue(); raw != "" {
			fireAt, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return Entry{}, fmt.Errorf("parse fire time: %w", err)
			}

			entry.FireAt = fireAt
		}

		return entry, nil
	case *structpb.Value_BoolValue:
		if !kind.BoolValue {
			return Entry{}, errUnsupportedValue
		}

		alarmID, index, ok := domain.ParseIdentifier(identifier)
		if !ok {
			return Entry{}, errUnparsableIdentifier
		}

		return Entry{
			AlarmID:         alarmID,
			OccurrenceIndex: index,
		}, nil
	default:
		return Entry{}, errUnsupportedValue
	}
}
