//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/internal/db"
	"github.com/evently/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	ctr, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(ctr)
	})

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	client, database, err := db.OpenMongo(ctx, config.MongoConfig{URI: uri, Database: "evently_test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return database
}

func TestMongoRepositories(t *testing.T) {
	database := setupTestMongo(t)
	ctx := context.Background()
	users := NewMongoUserRepository(database)
	events := NewMongoEventRepository(database)
	require.NoError(t, users.EnsureIndexes(ctx))
	require.NoError(t, events.EnsureIndexes(ctx))

	t.Run("users", func(t *testing.T) {
		created, err := users.Create(ctx, types.User{
			Username:     "ada",
			Email:        "ada@example.com",
			Role:         types.RoleHost,
			PasswordHash: "hash",
		})
		require.NoError(t, err)
		require.True(t, ValidID(created.ID))

		_, err = users.Create(ctx, types.User{Username: "ada2", Email: "ada@example.com", Role: types.RoleGuest, PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrDuplicate)

		count, err := users.CountByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		byEmail, err := users.GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
		assert.Equal(t, types.RoleHost, byEmail.Role)

		other, err := users.Create(ctx, types.User{Username: "bob", Email: "bob@example.com", Role: types.RoleGuest, PasswordHash: "x"})
		require.NoError(t, err)
		other.Email = "ada@example.com"
		_, err = users.Update(ctx, other)
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = users.Update(ctx, types.User{ID: NewID(), Username: "ghost", Email: "ghost@example.com"})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = users.GetByID(ctx, NewID())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = users.GetByID(ctx, "bad")
		assert.ErrorIs(t, err, ErrInvalidID)

		require.NoError(t, users.Delete(ctx, created.ID))
		assert.ErrorIs(t, users.Delete(ctx, created.ID), ErrNotFound)
		assert.ErrorIs(t, users.Delete(ctx, "bad"), ErrInvalidID)
	})

	t.Run("events", func(t *testing.T) {
		owner := NewID()
		empty, err := events.List(ctx, types.EventFilter{}, types.Page{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, empty)

		first, err := events.Create(ctx, types.Event{
			Title: "C++ (advanced)", Description: "Templates.*", EventDate: "2026-11-01",
			StartTime: "19:00:00", EndTime: "22:00:00", Owner: owner,
		})
		require.NoError(t, err)
		_, err = events.Create(ctx, types.Event{Title: "C++ (advanced)", Owner: owner})
		assert.ErrorIs(t, err, ErrDuplicate)

		second, err := events.Create(ctx, types.Event{
			Title: "c++ (ADVANCED) II", Description: "Another host", Owner: NewID(),
		})
		require.NoError(t, err)
		third, err := events.Create(ctx, types.Event{Title: "Jazz", Description: "Trio", Owner: owner})
		require.NoError(t, err)

		found, err := events.List(ctx, types.EventFilter{Title: "C++ (ADV"}, types.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, first.ID, found[0].ID)
		assert.Equal(t, second.ID, found[1].ID)

		none, err := events.List(ctx, types.EventFilter{Title: ".*"}, types.Page{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, none)

		byDescription, err := events.List(ctx, types.EventFilter{Description: "templates.*"}, types.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, byDescription, 1)
		assert.Equal(t, first.ID, byDescription[0].ID)

		paged, err := events.List(ctx, types.EventFilter{}, types.Page{Limit: 1, Skip: 2})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, third.ID, paged[0].ID)

		similar, err := events.List(ctx, types.EventFilter{Title: first.Title, Description: first.Description, ExcludeID: first.ID}, types.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, similar, 1)
		assert.Equal(t, second.ID, similar[0].ID)

		byPair, err := events.FindByTitleOwner(ctx, "Jazz", owner)
		require.NoError(t, err)
		assert.Equal(t, third.ID, byPair.ID)

		third.Title = first.Title
		_, err = events.Replace(ctx, third)
		assert.ErrorIs(t, err, ErrDuplicate)

		first.Description = "Quartet"
		replaced, err := events.Replace(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, "Quartet", replaced.Description)
		assert.Equal(t, first.CreatedAt.Unix(), replaced.CreatedAt.Unix())

		_, err = events.Replace(ctx, types.Event{ID: NewID(), Title: "x", Owner: owner})
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, events.Delete(ctx, first.ID))
		_, err = events.Get(ctx, first.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, events.Delete(ctx, first.ID), ErrNotFound)
		assert.ErrorIs(t, events.Delete(ctx, "bad"), ErrInvalidID)
	})
}
