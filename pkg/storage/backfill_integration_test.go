//go:build integration

package storage_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/dbtest"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/schema"
	"github.com/rcrt-io/rcrt/pkg/storage"
)

func TestSchemaLoaderReturnsLiveDefinitions(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	registry := schema.New()
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	defContext := json.RawMessage(`{"llm_hints":{"nodes":[]}}`)
	_, err := store.Create(ctx, models.CreateInput{
		OwnerID: "owner-1", Title: "incident schema", SchemaName: schema.DefSchemaName,
		Tags: []string{"defines:incident.v1"}, Context: defContext, ActorID: "agent-1", TTLType: models.TTLNever,
	}, "")
	require.NoError(t, err)

	defs, err := store.SchemaLoader()(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, 1, defs[0].Version)
	require.Contains(t, defs[0].Tags, "defines:incident.v1")
}

func TestBackfillKeywordsRecomputesEveryLiveRow(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	registry := schema.New()
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	created, err := store.Create(ctx, models.CreateInput{
		OwnerID: "owner-1", Title: "payment service outage", SchemaName: "incident.v1",
		Tags: []string{"severity:high"}, Context: json.RawMessage(`{}`), ActorID: "agent-1", TTLType: models.TTLNever,
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	updated, err := store.BackfillKeywords(ctx, "incident.v1")
	require.NoError(t, err)
	require.Equal(t, 1, updated)
}
