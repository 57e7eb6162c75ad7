// Package directory implements the agent identity and subscription
// registry: create/list/delete over the entities and subscriptions
// tables. Unlike pkg/storage these are admin resources with no
// versioning, ACL, or event sourcing of their own — a lighter
// goqu-over-*sql.DB CRUD shape than breadcrumbs.
package directory

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// Directory is the agent/subscription registry.
type Directory struct {
	db   *sql.DB
	goqu *goqu.Database
}

// New constructs a Directory bound to the given database handles.
func New(db *sql.DB, goquDB *goqu.Database) *Directory {
	return &Directory{db: db, goqu: goquDB}
}

// CreateAgent registers a new identity under ownerID with the given
// roles. A caller-supplied id lets the identity endpoint mint its own
// agent ids; an empty id gets a fresh ULID.
func (d *Directory) CreateAgent(ctx context.Context, id, ownerID, name string, roles []models.Role) (models.Agent, error) {
	for _, r := range roles {
		if !models.ValidRole(r) {
			return models.Agent{}, apierr.Invalidf("unknown role %q", r)
		}
	}
	if id == "" {
		id = ulid.Make().String()
	}

	agent := models.Agent{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Roles:     models.RoleList(roles),
		CreatedAt: time.Now().UTC(),
	}

	query, args, err := d.goqu.Insert("entities").Rows(goqu.Record{
		"id":         agent.ID,
		"owner_id":   agent.OwnerID,
		"name":       agent.Name,
		"roles":      agent.Roles,
		"created_at": agent.CreatedAt,
	}).ToSQL()
	if err != nil {
		return models.Agent{}, apierr.Wrap(apierr.Internal, "build create agent query", err)
	}
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return models.Agent{}, apierr.Wrap(apierr.Internal, "persist agent", err)
	}
	return agent, nil
}

// GetAgent loads a single agent by id.
func (d *Directory) GetAgent(ctx context.Context, id string) (models.Agent, bool, error) {
	query, args, err := d.goqu.From("entities").
		Select("id", "owner_id", "name", "roles", "created_at").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return models.Agent{}, false, apierr.Wrap(apierr.Internal, "build get agent query", err)
	}
	var a models.Agent
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Roles, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Agent{}, false, nil
	}
	if err != nil {
		return models.Agent{}, false, apierr.Wrap(apierr.Internal, "load agent", err)
	}
	return a, true, nil
}

// ListAgents returns every agent owned by ownerID.
func (d *Directory) ListAgents(ctx context.Context, ownerID string) ([]models.Agent, error) {
	query, args, err := d.goqu.From("entities").
		Select("id", "owner_id", "name", "roles", "created_at").
		Where(goqu.Ex{"owner_id": ownerID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build list agents query", err)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "list agents", err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Roles, &a.CreatedAt); err != nil {
			return nil, apierr.Wrap(apierr.Internal, "scan agent row", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAgent removes an agent, restricted to callers owning it — checked
// by the gateway via the ownerID the caller's own token carries.
func (d *Directory) DeleteAgent(ctx context.Context, ownerID, id string) error {
	query, args, err := d.goqu.Delete("entities").
		Where(goqu.Ex{"id": id, "owner_id": ownerID}).
		ToSQL()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "build delete agent query", err)
	}
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "delete agent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "read delete agent result", err)
	}
	if n == 0 {
		return apierr.NotFoundf("agent %s not found", id)
	}
	return nil
}

// CreateSubscription binds agentID to selector, used both for event-stream
// channel filtering and (identically) read-time filters.
func (d *Directory) CreateSubscription(ctx context.Context, agentID string, selector models.Selector) (models.Subscription, error) {
	sub := models.Subscription{
		ID:        ulid.Make().String(),
		AgentID:   agentID,
		Selector:  selector,
		CreatedAt: time.Now().UTC(),
	}
	query, args, err := d.goqu.Insert("subscriptions").Rows(goqu.Record{
		"id":         sub.ID,
		"agent_id":   sub.AgentID,
		"selector":   sub.Selector,
		"created_at": sub.CreatedAt,
	}).ToSQL()
	if err != nil {
		return models.Subscription{}, apierr.Wrap(apierr.Internal, "build create subscription query", err)
	}
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return models.Subscription{}, apierr.Wrap(apierr.Internal, "persist subscription", err)
	}
	return sub, nil
}

// ListSubscriptions returns every subscription belonging to agentID.
func (d *Directory) ListSubscriptions(ctx context.Context, agentID string) ([]models.Subscription, error) {
	query, args, err := d.goqu.From("subscriptions").
		Select("id", "agent_id", "selector", "created_at").
		Where(goqu.Ex{"agent_id": agentID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build list subscriptions query", err)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "list subscriptions", err)
	}
	defer rows.Close()

	var out []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.AgentID, &s.Selector, &s.CreatedAt); err != nil {
			return nil, apierr.Wrap(apierr.Internal, "scan subscription row", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSubscription removes a subscription, restricted to the owning
// agent.
func (d *Directory) DeleteSubscription(ctx context.Context, agentID, id string) error {
	query, args, err := d.goqu.Delete("subscriptions").
		Where(goqu.Ex{"id": id, "agent_id": agentID}).
		ToSQL()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "build delete subscription query", err)
	}
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "delete subscription", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "read delete subscription result", err)
	}
	if n == 0 {
		return apierr.NotFoundf("subscription %s not found", id)
	}
	return nil
}
