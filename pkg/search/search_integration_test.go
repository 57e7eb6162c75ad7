//go:build integration

package search_test

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
	"github.com/rcrt-io/rcrt/pkg/search"
	"github.com/rcrt-io/rcrt/pkg/storage"
)

func TestSearchFindsBreadcrumbByTagOverlap(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	created, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "incident report",
		SchemaName: "note",
		Tags:       []string{"outage"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	planner := search.New(client.DB(), client.Q(), registry, nil, config.SearchConfig{
		Alpha: 0.6, Beta: 0.4, CandidateMultiple: 4,
	})

	results, degraded, err := planner.Search(ctx, search.Query{
		AnyTags:       []string{"outage"},
		CallerOwnerID: "owner-1",
		K:             5,
	})
	require.NoError(t, err)
	require.False(t, degraded) // no text/embedding requested, so the missing embedder is never consulted
	require.Len(t, results, 1)
	require.Equal(t, created.ID, results[0].Summary.ID)
}

func TestSearchDegradesWhenEmbedderUnavailable(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	registry := schema.New()
	publisher := events.NewPublisher(client.Q(), "rcrt-test", nil)
	store := storage.New(client.DB(), client.Q(), registry, publisher, nil, time.Hour)

	_, err := store.Create(ctx, models.CreateInput{
		OwnerID:    "owner-1",
		Title:      "deploy failed",
		SchemaName: "note",
		Tags:       []string{"incident"},
		ActorID:    "actor-1",
	}, "")
	require.NoError(t, err)

	planner := search.New(client.DB(), client.Q(), registry, nil, config.SearchConfig{
		Alpha: 0.6, Beta: 0.4, CandidateMultiple: 4,
	})

	_, degraded, err := planner.Search(ctx, search.Query{
		Text:          "deploy failed",
		CallerOwnerID: "owner-1",
		K:             5,
	})
	require.NoError(t, err)
	require.True(t, degraded)
}
