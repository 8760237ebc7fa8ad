// Package usersink forwards settings activity to a go-users ActivitySink so
// applied edits land in the same audit trail as account activity.
package usersink

import (
	"context"
	"maps"
	"strings"

	"github.com/goliatone/go-settings/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// DefaultObjectType is the record object type when Hook.ObjectType is empty.
const DefaultObjectType = "settings"

// Hook records every event as a go-users ActivityRecord whose object is the
// changed level.
type Hook struct {
	Sink       usertypes.ActivitySink
	ObjectType string
}

// Notify logs event to the sink. IDs that are not UUIDs are recorded as
// uuid.Nil.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = event.Normalize()
	if !event.Valid() {
		return nil
	}
	return h.Sink.Log(ctx, Record(event, h.objectType()))
}

func (h Hook) objectType() string {
	if objectType := strings.TrimSpace(h.ObjectType); objectType != "" {
		return objectType
	}
	return DefaultObjectType
}

// Record maps event onto an ActivityRecord. Level, source, parts, snapshot
// and key lists travel in Data next to the event metadata.
func Record(event activity.Event, objectType string) usertypes.ActivityRecord {
	data := maps.Clone(event.Metadata)
	if data == nil {
		data = map[string]any{}
	}
	data["level"] = event.Level
	for key, value := range map[string]string{
		"source":      event.Source,
		"parts":       event.Parts,
		"snapshot_id": event.SnapshotID,
	} {
		if value != "" {
			data[key] = value
		}
	}
	if len(event.Promoted) > 0 {
		data["promoted"] = append([]string(nil), event.Promoted...)
	}
	if len(event.Cleared) > 0 {
		data["cleared"] = append([]string(nil), event.Cleared...)
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: objectType,
		ObjectID:   event.Level,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(input)
	if err != nil {
		return uuid.Nil
	}
	return id
}
