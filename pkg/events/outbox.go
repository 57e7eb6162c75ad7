package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
)

// maxNotifyBytes stays just under PostgreSQL's 8000-byte NOTIFY payload
// limit; an outbox row always
// records the full payload, but the NOTIFY wakeup carries only a pointer
// back to it once it would overflow.
const maxNotifyBytes = 7900

// Channel returns the LISTEN/NOTIFY channel name for a tenant, namespaced
// by the configured prefix so multiple RCRT deployments can share a
// Postgres instance without colliding.
func Channel(prefix, ownerID string) string {
	return fmt.Sprintf("%s_owner_%s", prefix, sanitizeChannel(ownerID))
}

func sanitizeChannel(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Publish persists ev to events_outbox and issues pg_notify, both inside
// tx — NOTIFY is transactional in PostgreSQL, so the wakeup is only
// delivered if tx subsequently commits. The caller drives the overall
// transaction (storage's mutation and this publish share one commit).
func Publish(ctx context.Context, tx *sql.Tx, goquDB *goqu.Database, channel string, ev Event) (int64, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}

	insertSQL, args, err := goquDB.Insert("events_outbox").Rows(goqu.Record{
		"event_type":    string(ev.Type),
		"breadcrumb_id": nullIfEmpty(ev.BreadcrumbID),
		"schema_name":   nullIfEmpty(ev.SchemaName),
		"tags":          pqArrayOrNil(ev.Tags),
		"version":       nullIfZero(ev.Version),
		"actor_id":      ev.ActorID,
		"channel":       channel,
		"dedupe_key":    dedupeKey(ev),
		"payload":       payload,
		"created_at":    ev.Timestamp,
	}).Returning("id").ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build outbox insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, insertSQL, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert outbox row: %w", err)
	}

	ev.ID = id
	notifyPayload, err := notifyBody(ev)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return 0, fmt.Errorf("pg_notify: %w", err)
	}
	return id, nil
}

// notifyBody renders the NOTIFY payload, falling back to a pointer-only
// envelope (routing fields + outbox id) when the full event would exceed
// PostgreSQL's 8000-byte NOTIFY limit. Subscribers resolve a pointer
// envelope via catchup-by-id.
func notifyBody(ev Event) (string, error) {
	full, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal notify payload: %w", err)
	}
	if len(full) <= maxNotifyBytes {
		return string(full), nil
	}
	pointer := map[string]any{
		"type":          ev.Type,
		"breadcrumb_id": ev.BreadcrumbID,
		"version":       ev.Version,
		"db_event_id":   ev.ID,
		"ts":            ev.Timestamp,
		"truncated":     true,
	}
	truncated, err := json.Marshal(pointer)
	if err != nil {
		return "", fmt.Errorf("marshal truncated notify payload: %w", err)
	}
	return string(truncated), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func pqArrayOrNil(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	return pq.Array(tags)
}
