//go:build integration

package ttl_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/dbtest"
	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/schema"
	"github.com/rcrt-io/rcrt/pkg/storage"
	"github.com/rcrt-io/rcrt/pkg/ttl"
)

func TestHygieneWorkerTombstonesExpiredBreadcrumb(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)

	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	created, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "soon to expire",
		SchemaName: "note",
		Tags:       []string{"a"},
		ActorID:    "actor-1",
		TTLType:    models.TTLDuration,
		TTLConfig:  []byte(`{"duration_ms":1}`),
	}, "")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	worker := ttl.NewHygieneWorker(client.DB(), client.Q(), publisher, config.HygieneConfig{
		ScanInterval: time.Hour, // scanOnce is invoked directly; the ticker is irrelevant here
		BatchSize:    10,
		Action:       "tombstone",
	})

	require.NoError(t, worker.ScanOnce(ctx))

	var deletedAt *time.Time
	row := client.DB().QueryRowContext(ctx, "SELECT deleted_at FROM breadcrumbs WHERE id = $1", created.ID)
	require.NoError(t, row.Scan(&deletedAt))
	require.NotNil(t, deletedAt)

	health := worker.Health()
	require.Equal(t, int64(1), health.TotalExpired)
}

func TestHygieneWorkerArchivesToHistoryOnly(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)

	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	created, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "archive me",
		SchemaName: "note",
		Tags:       []string{"a"},
		ActorID:    "actor-1",
		TTLType:    models.TTLDuration,
		TTLConfig:  []byte(`{"duration_ms":1}`),
	}, "")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	worker := ttl.NewHygieneWorker(client.DB(), client.Q(), publisher, config.HygieneConfig{
		ScanInterval: time.Hour,
		BatchSize:    10,
		Action:       "archive",
	})
	require.NoError(t, worker.ScanOnce(ctx))

	var count int
	row := client.DB().QueryRowContext(ctx, "SELECT count(*) FROM breadcrumbs WHERE id = $1", created.ID)
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 0, count)

	row = client.DB().QueryRowContext(ctx, "SELECT count(*) FROM breadcrumb_history WHERE breadcrumb_id = $1", created.ID)
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}
