//go:build integration

package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/dbtest"
	"github.com/rcrt-io/rcrt/pkg/directory"
	"github.com/rcrt-io/rcrt/pkg/models"
)

func TestCreateAndGetAgentRoundTrips(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	dir := directory.New(client.DB(), client.Q())

	created, err := dir.CreateAgent(ctx, "", "owner-1", "alerting-bot", []models.Role{models.RoleEmitter, models.RoleSubscriber})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fetched, found, err := dir.GetAgent(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alerting-bot", fetched.Name)
	require.True(t, fetched.HasRole(models.RoleEmitter))
	require.False(t, fetched.HasRole(models.RoleCurator))
}

func TestListAgentsScopesByOwner(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	dir := directory.New(client.DB(), client.Q())

	_, err := dir.CreateAgent(ctx, "", "owner-1", "a", []models.Role{models.RoleEmitter})
	require.NoError(t, err)
	_, err = dir.CreateAgent(ctx, "", "owner-2", "b", []models.Role{models.RoleEmitter})
	require.NoError(t, err)

	agents, err := dir.ListAgents(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "a", agents[0].Name)
}

func TestDeleteAgentIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	dir := directory.New(client.DB(), client.Q())

	created, err := dir.CreateAgent(ctx, "", "owner-1", "a", []models.Role{models.RoleEmitter})
	require.NoError(t, err)

	err = dir.DeleteAgent(ctx, "owner-2", created.ID)
	require.Error(t, err)

	err = dir.DeleteAgent(ctx, "owner-1", created.ID)
	require.NoError(t, err)

	_, found, err := dir.GetAgent(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSubscriptionCreateListDelete(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	dir := directory.New(client.DB(), client.Q())

	agent, err := dir.CreateAgent(ctx, "", "owner-1", "watcher", []models.Role{models.RoleSubscriber})
	require.NoError(t, err)

	sub, err := dir.CreateSubscription(ctx, agent.ID, models.Selector{AnyTags: []string{"outage"}})
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID)

	subs, err := dir.ListSubscriptions(ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, []string{"outage"}, subs[0].Selector.AnyTags)

	require.NoError(t, dir.DeleteSubscription(ctx, agent.ID, sub.ID))

	subs, err = dir.ListSubscriptions(ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, subs, 0)
}
