package events

import "time"

// Event is the envelope that flows through the event bus.
// Every cache change the hub makes is announced as one.
type Event struct {
	ID        string
	Type      EventType
	Sport     string
	GameID    string
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// StateCache writes
	EventScheduleUpdated EventType = "schedule_updated"
	EventSummaryUpdated  EventType = "summary_updated"
	EventPBPUpdated      EventType = "pbp_updated"
	// Relay link lifecycle
	EventRelayStatus EventType = "relay_status"
)
