package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
)

// Store backs CatchupQuerier and WebhookSource with direct reads against
// the events_outbox and webhooks tables, the same goqu-over-*sql.DB
// pattern the rest of the storage layer uses.
type Store struct {
	db   *sql.DB
	goqu *goqu.Database
}

// NewStore constructs a Store.
func NewStore(db *sql.DB, goquDB *goqu.Database) *Store {
	return &Store{db: db, goqu: goquDB}
}

// CatchupEvents implements CatchupQuerier: events on channel with
// id > sinceID, oldest first, bounded at limit rows.
func (s *Store) CatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]Event, error) {
	query, args, err := s.goqu.From("events_outbox").
		Select("id", "event_type", "breadcrumb_id", "schema_name", "tags", "version", "actor_id", "payload", "created_at").
		Where(goqu.Ex{"channel": channel}, goqu.C("id").Gt(sinceID)).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build catchup query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catchup events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev            Event
			breadcrumbID  sql.NullString
			schemaName    sql.NullString
			tags          pq.StringArray
			version       sql.NullInt64
			rawPayload    []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &breadcrumbID, &schemaName, &tags, &version, &ev.ActorID, &rawPayload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan catchup event: %w", err)
		}
		ev.BreadcrumbID = breadcrumbID.String
		ev.SchemaName = schemaName.String
		ev.Tags = []string(tags)
		ev.Version = int(version.Int64)
		ev.Payload = json.RawMessage(rawPayload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// WebhooksForChannel implements WebhookSource: every enabled webhook
// belonging to agents owned by ownerID, joined through entities since
// webhooks are keyed by agent_id rather than owner_id directly.
func (s *Store) WebhooksForChannel(ctx context.Context, ownerID string) ([]Webhook, error) {
	query, args, err := s.goqu.From("webhooks").
		Select("webhooks.id", "webhooks.agent_id", "webhooks.url", "webhooks.secret", "webhooks.enabled").
		InnerJoin(goqu.T("entities"), goqu.On(goqu.Ex{"webhooks.agent_id": goqu.I("entities.id")})).
		Where(goqu.Ex{"entities.owner_id": ownerID, "webhooks.enabled": true}).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build webhooks query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var out []Webhook
	for rows.Next() {
		var w Webhook
		if err := rows.Scan(&w.ID, &w.AgentID, &w.URL, &w.Secret, &w.Enabled); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
