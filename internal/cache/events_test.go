package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type eventRepoMock struct {
	mock.Mock
}

func (m *eventRepoMock) List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error) {
	args := m.Called(ctx, filter, page)
	events, _ := args.Get(0).([]types.Event)
	return events, args.Error(1)
}

func (m *eventRepoMock) Get(ctx context.Context, id string) (types.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Event), args.Error(1)
}

func (m *eventRepoMock) FindByTitleOwner(ctx context.Context, title, owner string) (types.Event, error) {
	args := m.Called(ctx, title, owner)
	return args.Get(0).(types.Event), args.Error(1)
}

func (m *eventRepoMock) Create(ctx context.Context, event types.Event) (types.Event, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(types.Event), args.Error(1)
}

func (m *eventRepoMock) Replace(ctx context.Context, event types.Event) (types.Event, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(types.Event), args.Error(1)
}

func (m *eventRepoMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := New(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetInvalidate(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	want := types.Event{ID: "abc", Title: "Jazz"}
	require.NoError(t, c.Set(ctx, "k", want))

	var got types.Event
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, c.Invalidate(ctx, "k"))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEventRepositoryCache_GetIsReadThrough(t *testing.T) {
	c, mr := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())
	ctx := context.Background()

	event := types.Event{ID: "65f0c0ffee0000000000abcd", Title: "Jazz"}
	repo.On("Get", mock.Anything, event.ID).Return(event, nil).Once()

	first, err := cached.Get(ctx, event.ID)
	require.NoError(t, err)
	second, err := cached.Get(ctx, event.ID)
	require.NoError(t, err)

	assert.Equal(t, event, first)
	assert.Equal(t, event, second)
	assert.True(t, mr.Exists(eventKey(event.ID)))
	repo.AssertExpectations(t)
}

func TestEventRepositoryCache_MissIsNotCached(t *testing.T) {
	c, mr := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())

	notFound := errors.New("not found")
	repo.On("Get", mock.Anything, "missing").Return(types.Event{}, notFound)

	_, err := cached.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, notFound)
	assert.False(t, mr.Exists(eventKey("missing")))
}

func cachedEvent(t *testing.T, c *Cache, id string) (types.Event, bool) {
	t.Helper()
	var event types.Event
	found, err := c.Get(context.Background(), eventKey(id), &event)
	require.NoError(t, err)
	return event, found
}

func TestEventRepositoryCache_ReplaceWritesThrough(t *testing.T) {
	c, _ := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())
	ctx := context.Background()

	event := types.Event{ID: "65f0c0ffee0000000000abcd", Title: "Jazz"}
	require.NoError(t, c.Set(ctx, eventKey(event.ID), event))

	updated := event
	updated.Title = "Blues"
	repo.On("Replace", mock.Anything, updated).Return(updated, nil).Once()

	_, err := cached.Replace(ctx, updated)
	require.NoError(t, err)

	got, found := cachedEvent(t, c, event.ID)
	require.True(t, found)
	assert.Equal(t, "Blues", got.Title)
	repo.AssertExpectations(t)
}

func TestEventRepositoryCache_FailedReplaceInvalidates(t *testing.T) {
	c, mr := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())
	ctx := context.Background()

	event := types.Event{ID: "65f0c0ffee0000000000abcd", Title: "Jazz"}
	require.NoError(t, c.Set(ctx, eventKey(event.ID), event))
	repo.On("Replace", mock.Anything, event).Return(types.Event{}, assert.AnError).Once()

	_, err := cached.Replace(ctx, event)

	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, mr.Exists(eventKey(event.ID)))
}

func TestEventRepositoryCache_DeleteLeavesTombstone(t *testing.T) {
	c, _ := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())
	ctx := context.Background()

	event := types.Event{ID: "65f0c0ffee0000000000abcd", Title: "Jazz"}
	require.NoError(t, c.Set(ctx, eventKey(event.ID), event))
	repo.On("Delete", mock.Anything, event.ID).Return(nil).Once()
	notFound := errors.New("not found")
	repo.On("Get", mock.Anything, event.ID).Return(types.Event{}, notFound).Once()

	require.NoError(t, cached.Delete(ctx, event.ID))

	_, err := cached.Get(ctx, event.ID)
	assert.ErrorIs(t, err, notFound)
	repo.AssertExpectations(t)
}

func TestEventRepositoryCache_StaleReadDoesNotOverwriteReplace(t *testing.T) {
	c, _ := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())
	ctx := context.Background()

	old := types.Event{ID: "65f0c0ffee0000000000abcd", Title: "Jazz"}
	updated := old
	updated.Title = "Blues"

	// The replace lands after the read fetched the old row and before it fills the cache.
	repo.On("Replace", mock.Anything, updated).Return(updated, nil).Once()
	repo.On("Get", mock.Anything, old.ID).Return(old, nil).Once().Run(func(mock.Arguments) {
		_, err := cached.Replace(ctx, updated)
		require.NoError(t, err)
	})

	got, err := cached.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz", got.Title)

	stored, found := cachedEvent(t, c, old.ID)
	require.True(t, found)
	assert.Equal(t, "Blues", stored.Title)
	repo.AssertExpectations(t)
}

func TestEventRepositoryCache_StaleReadDoesNotResurrectDeleted(t *testing.T) {
	c, _ := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())
	ctx := context.Background()

	event := types.Event{ID: "65f0c0ffee0000000000abcd", Title: "Jazz"}
	repo.On("Delete", mock.Anything, event.ID).Return(nil).Once()
	repo.On("Get", mock.Anything, event.ID).Return(event, nil).Once().Run(func(mock.Arguments) {
		require.NoError(t, cached.Delete(ctx, event.ID))
	})

	_, err := cached.Get(ctx, event.ID)
	require.NoError(t, err)

	stored, found := cachedEvent(t, c, event.ID)
	require.True(t, found)
	assert.Empty(t, stored.ID)
	repo.AssertExpectations(t)
}

func TestEventRepositoryCache_RedisDownFallsBack(t *testing.T) {
	c, mr := setupTestCache(t)
	repo := new(eventRepoMock)
	cached := NewEventRepositoryCache(repo, c, sl.Discard())

	event := types.Event{ID: "65f0c0ffee0000000000abcd"}
	repo.On("Get", mock.Anything, event.ID).Return(event, nil)
	mr.SetError("LOADING redis is loading the dataset in memory")

	got, err := cached.Get(context.Background(), event.ID)

	require.NoError(t, err)
	assert.Equal(t, event, got)
}
