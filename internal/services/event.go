package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/evently/apiserver/internal/notify"
	"github.com/evently/apiserver/internal/store"
	"github.com/evently/apiserver/types"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// EventRepository defines persistence operations for events.
type EventRepository interface {
	List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error)
	Get(ctx context.Context, id string) (types.Event, error)
	FindByTitleOwner(ctx context.Context, title, owner string) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Replace(ctx context.Context, event types.Event) (types.Event, error)
	Delete(ctx context.Context, id string) error
}

// FlyerProvider turns an optional uploaded flyer into a durable URL,
// generating an image when none is supplied.
type FlyerProvider interface {
	FlyerURL(ctx context.Context, event types.Event, flyer *types.Flyer) (string, error)
}

// EventInput carries the mutable fields of an event. A nil Flyer asks the
// flyer provider to generate one.
type EventInput struct {
	Title       string
	Description string
	EventDate   string
	StartTime   string
	EndTime     string
	Flyer       *types.Flyer
}

func (in EventInput) apply(event types.Event) types.Event {
	event.Title = in.Title
	event.Description = in.Description
	event.EventDate = in.EventDate
	event.StartTime = in.StartTime
	event.EndTime = in.EndTime
	return event
}

// EventService encapsulates event use-cases.
type EventService struct {
	repo     EventRepository
	flyers   FlyerProvider
	notifier Notifier
}

func NewEventService(repo EventRepository, flyers FlyerProvider, notifier Notifier) *EventService {
	return &EventService{repo: repo, flyers: flyers, notifier: notifier}
}

// NormalizePage applies the default limit and clamps both bounds.
func NormalizePage(page types.Page) types.Page {
	if page.Limit <= 0 {
		page.Limit = DefaultPageLimit
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}
	if page.Skip < 0 {
		page.Skip = 0
	}
	return page
}

// Create stores a new event owned by owner. The (title, owner) pair must be
// unused.
func (s *EventService) Create(ctx context.Context, owner types.User, in EventInput) (types.Event, error) {
	if err := s.ensureUnique(ctx, in.Title, owner.ID, ""); err != nil {
		return types.Event{}, err
	}

	event := in.apply(types.Event{Owner: owner.ID})
	url, err := s.flyers.FlyerURL(ctx, event, in.Flyer)
	if err != nil {
		return types.Event{}, fmt.Errorf("flyer for %q: %w", in.Title, classify(err))
	}
	event.FlyerURL = url

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return types.Event{}, fmt.Errorf("create event: %w", classify(err))
	}

	s.notify(ctx, notify.Notification{
		Kind:      notify.KindEventCreated,
		SubjectID: created.ID,
		ActorID:   owner.ID,
		Title:     created.Title,
	})
	return created, nil
}

func (s *EventService) Get(ctx context.Context, id string) (types.Event, error) {
	if !store.ValidID(id) {
		return types.Event{}, ErrInvalidID
	}
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Event{}, fmt.Errorf("get event %s: %w", id, classify(err))
	}
	return event, nil
}

// List returns events whose title or description contains the filter terms.
// An empty result is not an error.
func (s *EventService) List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error) {
	events, err := s.repo.List(ctx, filter, NormalizePage(page))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", classify(err))
	}
	return events, nil
}

// Similar lists other events whose title contains the seed's title or whose
// description contains the seed's description.
func (s *EventService) Similar(ctx context.Context, id string, page types.Page) ([]types.Event, error) {
	seed, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, types.EventFilter{
		Title:       seed.Title,
		Description: seed.Description,
		ExcludeID:   seed.ID,
	}, page)
}

// Replace overwrites an event. Hosts may only replace their own events.
func (s *EventService) Replace(ctx context.Context, actor types.User, id string, in EventInput) (types.Event, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.Event{}, err
	}

	if actor.Role != types.RoleAdmin && current.Owner != actor.ID {
		return types.Event{}, fmt.Errorf("replace event %s: %w", id, ErrForbidden)
	}

	if err := s.ensureUnique(ctx, in.Title, current.Owner, current.ID); err != nil {
		return types.Event{}, err
	}

	event := in.apply(current)
	url, err := s.flyers.FlyerURL(ctx, event, in.Flyer)
	if err != nil {
		return types.Event{}, fmt.Errorf("flyer for %q: %w", in.Title, classify(err))
	}
	event.FlyerURL = url

	replaced, err := s.repo.Replace(ctx, event)
	if err != nil {
		return types.Event{}, fmt.Errorf("replace event %s: %w", id, classify(err))
	}

	s.notify(ctx, notify.Notification{
		Kind:      notify.KindEventReplaced,
		SubjectID: replaced.ID,
		ActorID:   actor.ID,
		Title:     replaced.Title,
	})
	return replaced, nil
}

// Delete removes an event. A well-formed id that matches nothing is
// ErrNotFound.
func (s *EventService) Delete(ctx context.Context, actor types.User, id string) error {
	if !store.ValidID(id) {
		return ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, classify(err))
	}

	s.notify(ctx, notify.Notification{Kind: notify.KindEventDeleted, SubjectID: id, ActorID: actor.ID})
	return nil
}

// ensureUnique fails with ErrConflict when another event (not exceptID)
// already uses title for owner.
func (s *EventService) ensureUnique(ctx context.Context, title, owner, exceptID string) error {
	existing, err := s.repo.FindByTitleOwner(ctx, title, owner)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check duplicate event: %w", err)
	case existing.ID == exceptID:
		return nil
	default:
		return fmt.Errorf("event %q already exists for owner: %w", title, ErrConflict)
	}
}

func (s *EventService) notify(ctx context.Context, note notify.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, note)
	}
}
