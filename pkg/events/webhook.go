package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"
)

// Webhook is a registered per-agent delivery target.
type Webhook struct {
	ID      string
	AgentID string
	URL     string
	Secret  string
	Enabled bool
}

// WebhookSource supplies the webhooks currently enabled for a channel's
// owner.
type WebhookSource interface {
	WebhooksForChannel(ctx context.Context, ownerID string) ([]Webhook, error)
}

// Dispatcher delivers outbox events to registered webhooks with bounded
// exponential backoff, recording permanently-failed deliveries to a
// dead-letter table instead of dropping them silently.
type Dispatcher struct {
	db       *sql.DB
	goqu     *goqu.Database
	source   WebhookSource
	client   *http.Client
	maxRetry int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewDispatcher constructs a Dispatcher; maxRetry/baseDelay/maxDelay come
// from EventsConfig's webhook tuning.
func NewDispatcher(db *sql.DB, goquDB *goqu.Database, source WebhookSource, maxRetry int, baseDelay, maxDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		db:        db,
		goqu:      goquDB,
		source:    source,
		client:    &http.Client{Timeout: 10 * time.Second},
		maxRetry:  maxRetry,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Deliver attempts delivery of ev to every enabled webhook on channel,
// retrying each with jittered exponential backoff up to maxRetry times
// after the first attempt before recording a dead letter. Deliveries run
// sequentially per event; Publisher.AfterCommit invokes this on its own
// goroutine once the mutation has committed, off the request path.
func (d *Dispatcher) Deliver(ctx context.Context, channel string, ev Event) error {
	hooks, err := d.source.WebhooksForChannel(ctx, ev.OwnerID)
	if err != nil {
		return fmt.Errorf("list webhooks for owner %s: %w", ev.OwnerID, err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	var firstErr error
	for _, hook := range hooks {
		if !hook.Enabled {
			continue
		}
		if err := d.deliverOne(ctx, hook, ev, body); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if dlqErr := d.deadLetter(ctx, hook, ev, body, err); dlqErr != nil {
				return fmt.Errorf("record dead letter for webhook %s: %w", hook.ID, dlqErr)
			}
		}
	}
	return firstErr
}

func (d *Dispatcher) deliverOne(ctx context.Context, hook Webhook, ev Event, body []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.baseDelay
	bo.MaxInterval = d.maxDelay
	bounded := backoff.WithMaxRetries(bo, uint64(d.maxRetry))

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-RCRT-Event-Type", string(ev.Type))
		if hook.Secret != "" {
			req.Header.Set("X-RCRT-Signature", signPayload(hook.Secret, body))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("deliver webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook %s returned %d", hook.URL, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook %s returned %d", hook.URL, resp.StatusCode))
		}
		return nil
	}, bounded)
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) deadLetter(ctx context.Context, hook Webhook, ev Event, body []byte, deliveryErr error) error {
	insertSQL, args, err := d.goqu.Insert("webhook_dead_letters").Rows(goqu.Record{
		"id":         ulid.Make().String(),
		"webhook_id": hook.ID,
		"event_id":   ev.ID,
		"payload":    body,
		"last_error": deliveryErr.Error(),
		"attempts":   d.maxRetry,
		"created_at": time.Now().UTC(),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build dead letter insert: %w", err)
	}
	_, err = d.db.ExecContext(ctx, insertSQL, args...)
	return err
}
