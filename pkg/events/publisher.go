package events

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
)

// Publisher is the single entry point storage calls to turn a mutation
// into a durable, fanned-out event: outbox insert + pg_notify happen
// inside the caller's transaction; webhook delivery is best-effort and
// fired after commit.
type Publisher struct {
	goqu          *goqu.Database
	channelPrefix string
	dispatcher    *Dispatcher
}

// NewPublisher constructs a Publisher. dispatcher may be nil if webhook
// delivery is disabled for this deployment.
func NewPublisher(goquDB *goqu.Database, channelPrefix string, dispatcher *Dispatcher) *Publisher {
	return &Publisher{goqu: goquDB, channelPrefix: channelPrefix, dispatcher: dispatcher}
}

// Publish persists and notifies ev within tx, scoped to ownerID's
// channel. The caller must still Commit tx; Publish only participates in
// it.
func (p *Publisher) Publish(ctx context.Context, tx *sql.Tx, ownerID string, ev Event) (int64, error) {
	ev.OwnerID = ownerID
	channel := Channel(p.channelPrefix, ownerID)
	return Publish(ctx, tx, p.goqu, channel, ev)
}

// AfterCommit should be called once tx has committed successfully; it
// fires best-effort webhook delivery for ev. It never returns an error to
// the caller — delivery failures are captured in the dead-letter table by
// the Dispatcher itself.
func (p *Publisher) AfterCommit(ctx context.Context, ownerID string, ev Event) {
	if p.dispatcher == nil {
		return
	}
	ev.OwnerID = ownerID
	channel := Channel(p.channelPrefix, ownerID)
	go func() {
		if err := p.dispatcher.Deliver(context.WithoutCancel(ctx), channel, ev); err != nil {
			slog.Warn("webhook delivery failed", "breadcrumb_id", ev.BreadcrumbID, "error", err)
		}
	}()
}
