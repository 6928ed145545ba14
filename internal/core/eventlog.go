package core

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/store"
)

// LogEntry is one recorded room event. Entries without a room tag are global
// and replayed to every joining client. The log does not interpret event
// semantics, it only routes and bounds them.
type LogEntry struct {
	Room  string          `json:"room,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventLog is the bounded, room-scoped append log with replay-on-join. The
// store retains only the most recent entries (cap), newest first; replay
// reverses them to chronological order.
type EventLog struct {
	store  store.Store
	groups Broadcaster
	cap    int
	log    zerolog.Logger
}

func NewEventLog(st store.Store, groups Broadcaster, logCap int, logger *zerolog.Logger) *EventLog {
	return &EventLog{
		store:  st,
		groups: groups,
		cap:    logCap,
		log:    logger.With().Str("component", "eventlog").Logger(),
	}
}

// Append records an event. Persistence is fire-and-forget; the store keeps
// entries ordered and evicts the oldest beyond the cap.
func (l *EventLog) Append(room, event string, data []byte) {
	entry, err := json.Marshal(LogEntry{Room: room, Event: event, Data: data})
	if err != nil {
		l.log.Warn().Err(err).Str("event", event).Msg("marshal log entry")
		return
	}
	l.store.PushLog(entry)
}

// ReplayTo delivers the retained log to one socket in chronological order,
// filtered to entries tagged with the client's room or untagged (global).
// Malformed entries are logged and skipped without aborting the replay.
func (l *EventLog) ReplayTo(ctx context.Context, socket Socket, room string) {
	entries, err := l.store.FetchLog(ctx, l.cap)
	if err != nil {
		l.log.Warn().Err(err).Msg("fetch event log")
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		var entry LogEntry
		if err := json.Unmarshal(entries[i], &entry); err != nil || entry.Event == "" {
			l.log.Warn().Err(err).Msg("skipping malformed log entry")
			continue
		}
		if entry.Room != "" && entry.Room != room {
			continue
		}
		l.groups.EmitToSocket(socket, entry.Event, entry.Data)
	}
}
