//go:build integration

package edges

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/dbtest"
	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/schema"
	"github.com/rcrt-io/rcrt/pkg/storage"
)

func testEdgeConfig() config.EdgeConfig {
	return config.EdgeConfig{
		WorkerCount:    1,
		TopMPerType:    5,
		TagOverlapMinK: 1,
		SemanticTopK:   5,
		SemanticThresh: 0.5,
	}
}

func TestRebuildComputesCausalEdgeFromContextReference(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	parent, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "parent",
		SchemaName: "note",
		Tags:       []string{"a"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	childContext, err := json.Marshal(map[string]string{"response_to": parent.ID})
	require.NoError(t, err)
	child, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "child",
		SchemaName: "note",
		Tags:       []string{"b"},
		Context:    childContext,
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	require.NoError(t, rebuild(ctx, client.DB(), client.Q(), testEdgeConfig(), child.ID))

	var count int
	row := client.DB().QueryRowContext(ctx,
		"SELECT count(*) FROM breadcrumb_edges WHERE source_id=$1 AND target_id=$2 AND edge_type=$3",
		child.ID, parent.ID, string(models.EdgeCausal))
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}

func TestRebuildComputesTagEdgeAboveOverlapThreshold(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	a, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "a",
		SchemaName: "note",
		Tags:       []string{"alpha", "beta"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	b, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "b",
		SchemaName: "note",
		Tags:       []string{"alpha", "beta", "gamma"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	require.NoError(t, rebuild(ctx, client.DB(), client.Q(), testEdgeConfig(), a.ID))

	var count int
	row := client.DB().QueryRowContext(ctx,
		"SELECT count(*) FROM breadcrumb_edges WHERE source_id=$1 AND target_id=$2 AND edge_type=$3",
		a.ID, b.ID, string(models.EdgeTag))
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}

func TestRebuildIsIdempotentAndReplacesPriorEdges(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	a, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "a",
		SchemaName: "note",
		Tags:       []string{"alpha"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	_, err = store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "b",
		SchemaName: "note",
		Tags:       []string{"alpha"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	cfg := testEdgeConfig()
	require.NoError(t, rebuild(ctx, client.DB(), client.Q(), cfg, a.ID))
	require.NoError(t, rebuild(ctx, client.DB(), client.Q(), cfg, a.ID))

	var count int
	row := client.DB().QueryRowContext(ctx,
		"SELECT count(*) FROM breadcrumb_edges WHERE source_id=$1 AND edge_type=$2",
		a.ID, string(models.EdgeTag))
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}

func TestRebuildOnMissingBreadcrumbIsNoOp(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)

	require.NoError(t, rebuild(ctx, client.DB(), client.Q(), testEdgeConfig(), "does-not-exist"))
}
