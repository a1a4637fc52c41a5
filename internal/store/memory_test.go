package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/evently/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEventRepository()
	owner := NewID()

	var ids []string
	for i := 0; i < 3; i++ {
		event, err := repo.Create(ctx, types.Event{Title: fmt.Sprintf("Party %d", i), Description: "fun", Owner: owner})
		require.NoError(t, err)
		ids = append(ids, event.ID)
	}

	_, err := repo.Create(ctx, types.Event{Title: "Party 0", Owner: owner})
	assert.ErrorIs(t, err, ErrDuplicate)

	t.Run("list pages in id order", func(t *testing.T) {
		events, err := repo.List(ctx, types.EventFilter{}, types.Page{Limit: 2, Skip: 1})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, ids[1], events[0].ID)
		assert.Equal(t, ids[2], events[1].ID)
	})

	t.Run("search is literal and case insensitive", func(t *testing.T) {
		events, err := repo.List(ctx, types.EventFilter{Title: "PARTY 2"}, types.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, events, 1)

		events, err = repo.List(ctx, types.EventFilter{Title: "Party .*"}, types.Page{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("exclude", func(t *testing.T) {
		events, err := repo.List(ctx, types.EventFilter{Description: "fun", ExcludeID: ids[0]}, types.Page{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("replace keeps created_at and checks uniqueness", func(t *testing.T) {
		current, err := repo.Get(ctx, ids[0])
		require.NoError(t, err)

		current.Title = "Party 1"
		_, err = repo.Replace(ctx, current)
		assert.ErrorIs(t, err, ErrDuplicate)

		current.Title = "Renamed"
		replaced, err := repo.Replace(ctx, current)
		require.NoError(t, err)
		assert.Equal(t, current.CreatedAt, replaced.CreatedAt)
	})

	t.Run("delete", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, "zzz"), ErrInvalidID)
		assert.ErrorIs(t, repo.Delete(ctx, NewID()), ErrNotFound)
		require.NoError(t, repo.Delete(ctx, ids[2]))
		_, err := repo.Get(ctx, ids[2])
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user, err := repo.Create(ctx, types.User{Username: "ada", Email: "ada@example.com", Role: types.RoleGuest})
	require.NoError(t, err)
	assert.True(t, ValidID(user.ID))

	_, err = repo.Create(ctx, types.User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	count, err := repo.CountByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	user.Role = types.RoleHost
	updated, err := repo.Update(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, types.RoleHost, updated.Role)

	_, err = repo.GetByID(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = repo.GetByEmail(ctx, "none@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, user.ID))
	assert.ErrorIs(t, repo.Delete(ctx, user.ID), ErrNotFound)
}
