package ttl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// advisoryLockKey is the fleet-wide pg_advisory lock hygiene scans
// contend on so only one replica scans expired breadcrumbs at a time.
// Only the hygiene worker takes it; the edge worker pool takes no
// advisory lock. Held only for the lifetime of the scanning transaction via
// pg_try_advisory_xact_lock, so it auto-releases on commit or rollback
// without a dedicated connection.
const advisoryLockKey = 7737265 // "rcrt" folded into an int32-safe value

// HygieneWorker periodically expires overdue breadcrumbs. It is a single
// worker rather than a pool — one scanning pass per interval, serialized
// fleet-wide by the advisory lock rather than parallelized within a
// process — with a Start/Stop/run lifecycle built on the usual
// ticker-plus-stopCh idiom.
type HygieneWorker struct {
	db        *sql.DB
	goqu      *goqu.Database
	publisher *events.Publisher
	cfg       config.HygieneConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu           sync.RWMutex
	lastScan     time.Time
	totalExpired int64
}

// NewHygieneWorker constructs a HygieneWorker.
func NewHygieneWorker(db *sql.DB, goquDB *goqu.Database, publisher *events.Publisher, cfg config.HygieneConfig) *HygieneWorker {
	return &HygieneWorker{
		db:        db,
		goqu:      goquDB,
		publisher: publisher,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the scan loop in a goroutine.
func (w *HygieneWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the loop to stop and waits for the in-flight scan, if any,
// to finish.
func (w *HygieneWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// HygieneHealth reports the worker's last-scan bookkeeping.
type HygieneHealth struct {
	LastScan     time.Time
	TotalExpired int64
}

// Health returns the worker's current health snapshot.
func (w *HygieneWorker) Health() HygieneHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return HygieneHealth{LastScan: w.lastScan, TotalExpired: w.totalExpired}
}

func (w *HygieneWorker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("component", "hygiene")
	log.Info("hygiene worker started", "interval", w.cfg.ScanInterval, "batch_size", w.cfg.BatchSize, "action", w.cfg.Action)

	ticker := time.NewTicker(w.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			log.Info("hygiene worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, hygiene worker shutting down")
			return
		case <-ticker.C:
			if err := w.ScanOnce(ctx); err != nil {
				log.Error("hygiene scan failed", "error", err)
			}
		}
	}
}

// expiredRow is the subset of a breadcrumb row hygiene needs to apply its
// configured action and emit breadcrumb.expired.
type expiredRow struct {
	ID         string
	OwnerID    string
	Title      string
	SchemaName string
	Tags       models.StringSet
	Context    models.JSONB
	Checksum   string
	UpdatedBy  string
	UpdatedAt  time.Time
	Version    int
}

// ScanOnce claims the fleet-wide advisory lock for one transaction,
// expires a bounded batch of overdue breadcrumbs ordered by expires_at,
// applies the configured action, and — once the transaction commits —
// fans breadcrumb.expired out through the publisher. Idempotent: a
// breadcrumb already tombstoned or removed simply drops out of the WHERE
// clause on the next pass, so a crash mid-scan never double-expires
// anything. Exported so callers (and tests) can trigger an out-of-band
// scan without waiting for the ticker.
func (w *HygieneWorker) ScanOnce(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin hygiene scan: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked bool
	if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("acquire hygiene advisory lock: %w", err)
	}
	if !locked {
		return nil // another replica is already scanning
	}

	rows, err := w.claimExpired(ctx, tx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return tx.Commit()
	}

	evs := make([]events.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := w.applyAction(ctx, tx, row)
		if err != nil {
			return err
		}
		evs = append(evs, ev)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hygiene scan: %w", err)
	}

	for _, ev := range evs {
		w.publisher.AfterCommit(ctx, ev.OwnerID, ev)
	}

	w.mu.Lock()
	w.lastScan = time.Now().UTC()
	w.totalExpired += int64(len(rows))
	w.mu.Unlock()

	slog.Info("hygiene expired breadcrumbs", "count", len(rows), "action", w.cfg.Action)
	return nil
}

// claimExpired selects up to BatchSize live breadcrumbs past their
// expires_at, oldest-overdue first, locking each row (FOR UPDATE SKIP
// LOCKED): rows already locked by a concurrent Get/Patch are skipped
// rather than waited on, and no row is processed twice. A Get/Patch that
// reaches a row after the scan locked it waits for the scan to commit.
func (w *HygieneWorker) claimExpired(ctx context.Context, tx *sql.Tx) ([]expiredRow, error) {
	query, args, err := w.goqu.From("breadcrumbs").
		Select("id", "owner_id", "title", "schema_name", "tags", "context", "checksum", "updated_by", "updated_at", "version").
		Where(
			goqu.C("deleted_at").IsNull(),
			goqu.C("expires_at").IsNotNull(),
			goqu.C("expires_at").Lte(time.Now().UTC()),
		).
		Order(goqu.I("expires_at").Asc()).
		Limit(uint(w.cfg.BatchSize)).
		ForUpdate(exp.SkipLocked).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build hygiene scan query: %w", err)
	}

	rs, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired breadcrumbs: %w", err)
	}
	defer rs.Close()

	var out []expiredRow
	for rs.Next() {
		var r expiredRow
		if err := rs.Scan(&r.ID, &r.OwnerID, &r.Title, &r.SchemaName, &r.Tags, &r.Context, &r.Checksum, &r.UpdatedBy, &r.UpdatedAt, &r.Version); err != nil {
			return nil, fmt.Errorf("scan expired breadcrumb row: %w", err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired breadcrumb rows: %w", err)
	}
	return out, nil
}

// applyAction disposes of one expired row per the worker's configured
// action and returns the breadcrumb.expired event to fan out after
// commit.
func (w *HygieneWorker) applyAction(ctx context.Context, tx *sql.Tx, row expiredRow) (events.Event, error) {
	now := time.Now().UTC()
	ev := events.Event{
		Type:         events.TypeBreadcrumbExpire,
		BreadcrumbID: row.ID,
		OwnerID:      row.OwnerID,
		SchemaName:   row.SchemaName,
		Tags:         row.Tags,
		Version:      row.Version,
		Timestamp:    now,
	}

	switch w.cfg.Action {
	case "tombstone":
		sqlStr, args, err := w.goqu.Update("breadcrumbs").
			Set(goqu.Record{"deleted_at": now}).
			Where(goqu.Ex{"id": row.ID}).ToSQL()
		if err != nil {
			return ev, fmt.Errorf("build tombstone update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return ev, fmt.Errorf("tombstone breadcrumb %s: %w", row.ID, err)
		}

	case "hard_delete":
		sqlStr, args, err := w.goqu.Delete("breadcrumbs").Where(goqu.Ex{"id": row.ID}).ToSQL()
		if err != nil {
			return ev, fmt.Errorf("build hard delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return ev, fmt.Errorf("hard delete breadcrumb %s: %w", row.ID, err)
		}

	case "archive":
		if err := w.archiveRow(ctx, tx, row); err != nil {
			return ev, err
		}

	default:
		return ev, fmt.Errorf("unknown hygiene action %q", w.cfg.Action)
	}

	if _, err := w.publisher.Publish(ctx, tx, row.OwnerID, ev); err != nil {
		return ev, fmt.Errorf("publish expire event for %s: %w", row.ID, err)
	}
	return ev, nil
}

// archiveRow writes a final history snapshot of the row's current state
// (it may already have history from prior patches, but never one covering
// its terminal version) and removes the live breadcrumbs row. History is
// never deleted by any hygiene action.
func (w *HygieneWorker) archiveRow(ctx context.Context, tx *sql.Tx, row expiredRow) error {
	histSQL, histArgs, err := w.goqu.Insert("breadcrumb_history").Rows(goqu.Record{
		"breadcrumb_id": row.ID,
		"version":       row.Version,
		"title":         row.Title,
		"schema_name":   row.SchemaName,
		"tags":          row.Tags,
		"context":       row.Context,
		"checksum":      row.Checksum,
		"updated_by":    row.UpdatedBy,
		"updated_at":    row.UpdatedAt,
	}).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		return fmt.Errorf("build archive history insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, histSQL, histArgs...); err != nil {
		return fmt.Errorf("archive history for %s: %w", row.ID, err)
	}

	delSQL, delArgs, err := w.goqu.Delete("breadcrumbs").Where(goqu.Ex{"id": row.ID}).ToSQL()
	if err != nil {
		return fmt.Errorf("build archive delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("archive delete breadcrumb %s: %w", row.ID, err)
	}
	return nil
}
