// Package edges implements the asynchronous edge builder: a fixed worker
// pool that recomputes causal/temporal/tag/semantic relations for a
// breadcrumb after every create/update. Enqueuing is in-process via a
// buffered channel rather than a durable queue table — edge
// recomputation is asynchronous, idempotent, and eventually consistent,
// so a dropped enqueue under backpressure just means that breadcrumb's
// edges are stale until its next write.
package edges

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/config"
)

// queueSizePerWorker bounds the in-process job channel relative to pool
// size.
const queueSizePerWorker = 8

// WorkerStatus reports whether a worker is idle or processing a job.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth reports one worker's current state.
type WorkerHealth struct {
	ID                string
	Status            WorkerStatus
	BreadcrumbsBuilt  int
	LastActivity      time.Time
	CurrentBreadcrumb string
}

// PoolHealth aggregates health across the pool.
type PoolHealth struct {
	TotalWorkers  int
	ActiveWorkers int
	QueueDepth    int
	QueueCapacity int
	WorkerStats   []WorkerHealth
}

// Pool is the edge builder's fixed-size worker pool.
type Pool struct {
	db   *sql.DB
	goqu *goqu.Database
	cfg  config.EdgeConfig

	jobs    chan string
	workers []*worker
	stopCh  chan struct{}
	stopOnce sync.Once
	wg      sync.WaitGroup
	started bool
}

// NewPool constructs a Pool. Call Start to spawn workers before Enqueue is
// useful; Enqueue before Start is a non-blocking no-op once the buffered
// channel fills.
func NewPool(db *sql.DB, goquDB *goqu.Database, cfg config.EdgeConfig) *Pool {
	return &Pool{
		db:     db,
		goqu:   goquDB,
		cfg:    cfg,
		jobs:   make(chan string, cfg.WorkerCount*queueSizePerWorker),
		stopCh: make(chan struct{}),
	}
}

// Start spawns WorkerCount goroutines, each independently pulling
// breadcrumb ids off the shared job channel.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("edge worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := &worker{
			id:     fmt.Sprintf("edge-worker-%d", i),
			db:     p.db,
			goqu:   p.goqu,
			cfg:    p.cfg,
			jobs:   p.jobs,
			stopCh: p.stopCh,
			status: WorkerStatusIdle,
		}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}
	slog.Info("edge worker pool started", "worker_count", p.cfg.WorkerCount)
}

// Stop signals every worker to stop taking new jobs and waits for
// in-flight recomputation to finish. Queued-but-unstarted jobs are
// dropped — safe, since edge recomputation is idempotent and the next
// write to that breadcrumb re-enqueues it.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// Enqueue schedules breadcrumbID for edge recomputation. Non-blocking: if
// the queue is full the id is dropped and logged — edge recomputation
// stays eventually consistent and bounded rather than applying
// backpressure to the caller.
func (p *Pool) Enqueue(breadcrumbID string) {
	select {
	case p.jobs <- breadcrumbID:
	default:
		slog.Warn("edge build queue full, dropping enqueue", "breadcrumb_id", breadcrumbID)
	}
}

// Health returns a snapshot of the pool and its workers.
func (p *Pool) Health() PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		stats[i] = w.health()
		if stats[i].Status == WorkerStatusWorking {
			active++
		}
	}
	return PoolHealth{
		TotalWorkers:  len(p.workers),
		ActiveWorkers: active,
		QueueDepth:    len(p.jobs),
		QueueCapacity: cap(p.jobs),
		WorkerStats:   stats,
	}
}

type worker struct {
	id     string
	db     *sql.DB
	goqu   *goqu.Database
	cfg    config.EdgeConfig
	jobs   <-chan string
	stopCh <-chan struct{}

	mu                sync.RWMutex
	status            WorkerStatus
	breadcrumbsBuilt  int
	lastActivity      time.Time
	currentBreadcrumb string
}

func (w *worker) run(ctx context.Context) {
	log := slog.With("worker_id", w.id)
	log.Info("edge worker started")
	for {
		select {
		case <-w.stopCh:
			log.Info("edge worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, edge worker shutting down")
			return
		case id, ok := <-w.jobs:
			if !ok {
				return
			}
			w.setStatus(WorkerStatusWorking, id)
			if err := rebuild(ctx, w.db, w.goqu, w.cfg, id); err != nil {
				log.Error("edge rebuild failed", "breadcrumb_id", id, "error", err)
			}
			w.setStatus(WorkerStatusIdle, "")
			w.mu.Lock()
			w.breadcrumbsBuilt++
			w.mu.Unlock()
		}
	}
}

func (w *worker) setStatus(status WorkerStatus, breadcrumbID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentBreadcrumb = breadcrumbID
	w.lastActivity = time.Now().UTC()
}

func (w *worker) health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            w.status,
		BreadcrumbsBuilt:  w.breadcrumbsBuilt,
		LastActivity:      w.lastActivity,
		CurrentBreadcrumb: w.currentBreadcrumb,
	}
}
