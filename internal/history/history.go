package history

import (
	"context"
	"time"
)

// EventType defines the kind of instance lifecycle event.
type EventType string

const (
	EventSpawned EventType = "spawned" // created by an explicit spawn request
	EventAdopted EventType = "adopted" // discovered by reconciliation
	EventRemoved EventType = "removed" // pid vanished from the process table
)

// Record is the instance snapshot attached to an event.
type Record struct {
	InstanceID string `json:"instance_id"`
	PID        int    `json:"pid"`
	Title      string `json:"title"`
	Command    string `json:"command"`
}

// Event represents one lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (audit/analytics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
