package cache

import (
	"context"
	"log/slog"

	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/types"
)

// EventRepository is the event persistence contract the cache wraps.
type EventRepository interface {
	List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error)
	Get(ctx context.Context, id string) (types.Event, error)
	FindByTitleOwner(ctx context.Context, title, owner string) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Replace(ctx context.Context, event types.Event) (types.Event, error)
	Delete(ctx context.Context, id string) error
}

// EventRepositoryCache serves single-event reads from redis. Reads fill the
// cache only when the key is empty; replace writes the new event through and
// delete leaves a tombstone, so a read that raced a write cannot put an older
// copy back. Redis failures degrade to the wrapped repository.
type EventRepositoryCache struct {
	next  EventRepository
	cache *Cache
	log   *slog.Logger
}

func NewEventRepositoryCache(next EventRepository, cache *Cache, log *slog.Logger) *EventRepositoryCache {
	return &EventRepositoryCache{next: next, cache: cache, log: log}
}

func eventKey(id string) string {
	return "event:" + id
}

func (c *EventRepositoryCache) Get(ctx context.Context, id string) (types.Event, error) {
	var event types.Event
	found, err := c.cache.Get(ctx, eventKey(id), &event)
	if err != nil {
		c.log.Warn("event cache read failed", slog.String("event_id", id), sl.Err(err))
	}
	if found && !isTombstone(event) {
		return event, nil
	}

	event, err = c.next.Get(ctx, id)
	if err != nil {
		return types.Event{}, err
	}
	if found {
		return event, nil
	}
	if _, err := c.cache.SetIfAbsent(ctx, eventKey(id), event); err != nil {
		c.log.Warn("event cache write failed", slog.String("event_id", id), sl.Err(err))
	}
	return event, nil
}

// A tombstone is an event without an id.
func isTombstone(event types.Event) bool {
	return event.ID == ""
}

func (c *EventRepositoryCache) List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error) {
	return c.next.List(ctx, filter, page)
}

func (c *EventRepositoryCache) FindByTitleOwner(ctx context.Context, title, owner string) (types.Event, error) {
	return c.next.FindByTitleOwner(ctx, title, owner)
}

func (c *EventRepositoryCache) Create(ctx context.Context, event types.Event) (types.Event, error) {
	return c.next.Create(ctx, event)
}

func (c *EventRepositoryCache) Replace(ctx context.Context, event types.Event) (types.Event, error) {
	replaced, err := c.next.Replace(ctx, event)
	if err != nil {
		c.invalidate(ctx, event.ID)
		return replaced, err
	}
	c.store(ctx, event.ID, replaced)
	return replaced, nil
}

func (c *EventRepositoryCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		c.invalidate(ctx, id)
		return err
	}
	c.store(ctx, id, types.Event{})
	return nil
}

func (c *EventRepositoryCache) store(ctx context.Context, id string, event types.Event) {
	if err := c.cache.Set(ctx, eventKey(id), event); err != nil {
		c.log.Warn("event cache write failed", slog.String("event_id", id), sl.Err(err))
		c.invalidate(ctx, id)
	}
}

func (c *EventRepositoryCache) invalidate(ctx context.Context, id string) {
	if err := c.cache.Invalidate(ctx, eventKey(id)); err != nil {
		c.log.Warn("event cache invalidation failed", slog.String("event_id", id), sl.Err(err))
	}
}
