// Package events implements the outbox pattern (persist + pg_notify in one
// transaction), a LISTEN-based fanout listener, an SSE connection manager,
// and best-effort webhook delivery for the breadcrumb-event model.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is one of the six event-frame types the gateway streams.
type Type string

// Event type constants.
const (
	TypePing             Type = "ping"
	TypeBreadcrumbCreate Type = "breadcrumb.created"
	TypeBreadcrumbUpdate Type = "breadcrumb.updated"
	TypeBreadcrumbDelete Type = "breadcrumb.deleted"
	TypeBreadcrumbExpire Type = "breadcrumb.expired"
	TypeSystem           Type = "system"
)

// Event is the durable record persisted to events_outbox and, once its
// transaction commits, delivered to SSE subscribers and webhooks.
type Event struct {
	ID           int64           `json:"-"`
	OwnerID      string          `json:"-"` // routing only; never rendered in the wire frame
	Type         Type            `json:"type"`
	BreadcrumbID string          `json:"breadcrumb_id,omitempty"`
	SchemaName   string          `json:"schema_name,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Version      int             `json:"version,omitempty"`
	ActorID      string          `json:"actor_id,omitempty"`
	Timestamp    time.Time       `json:"ts"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Frame renders an Event as an SSE data frame: "data: <json>\n\n".
func (e Event) Frame() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event frame: %w", err)
	}
	out := make([]byte, 0, len(body)+8)
	out = append(out, "data: "...)
	out = append(out, body...)
	out = append(out, '\n', '\n')
	return out, nil
}

// decodeEvent unmarshals a raw NOTIFY payload (full event or truncated
// pointer envelope) into ev.
func decodeEvent(payload []byte, ev *Event) error {
	if err := json.Unmarshal(payload, ev); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	var withID struct {
		DBEventID int64 `json:"db_event_id"`
	}
	if err := json.Unmarshal(payload, &withID); err == nil && withID.DBEventID != 0 {
		ev.ID = withID.DBEventID
	}
	return nil
}

// dedupeKey is the value uniquely identifying this mutation's event, used
// by the outbox's unique index to make retried publishes idempotent.
func dedupeKey(ev Event) string {
	if ev.BreadcrumbID != "" && ev.Version > 0 {
		return fmt.Sprintf("%s:%s:%d", ev.Type, ev.BreadcrumbID, ev.Version)
	}
	return fmt.Sprintf("%s:%s:%d", ev.Type, ev.ActorID, ev.Timestamp.UnixNano())
}
