package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evently/apiserver/types"
)

// MemoryUserRepository keeps users in process memory. It backs
// STORE_BACKEND=memory and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]types.User)}
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	if !ValidID(id) {
		return types.User{}, ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (m *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (m *MemoryUserRepository) CountByEmail(_ context.Context, email string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, user := range m.users {
		if user.Email == email {
			count++
		}
	}
	return count, nil
}

func (m *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return types.User{}, ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.ID = NewID()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

// Update overwrites username and role.
func (m *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	current.Username = user.Username
	current.Role = user.Role
	current.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = current
	return current, nil
}

func (m *MemoryUserRepository) Delete(_ context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// MemoryEventRepository keeps events in process memory with the same
// matching and ordering rules as the database backends.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]types.Event
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string]types.Event)}
}

func (m *MemoryEventRepository) List(_ context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error) {
	if filter.ExcludeID != "" && !ValidID(filter.ExcludeID) {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	matched := make([]types.Event, 0, len(m.events))
	for _, event := range m.events {
		if event.ID != filter.ExcludeID && matches(event, filter) {
			matched = append(matched, event)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if page.Skip >= len(matched) {
		return []types.Event{}, nil
	}
	matched = matched[page.Skip:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, nil
}

func matches(event types.Event, filter types.EventFilter) bool {
	if filter.Title == "" && filter.Description == "" {
		return true
	}
	return containsFold(event.Title, filter.Title) || containsFold(event.Description, filter.Description)
}

func containsFold(s, term string) bool {
	return term != "" && strings.Contains(strings.ToLower(s), strings.ToLower(term))
}

func (m *MemoryEventRepository) Get(_ context.Context, id string) (types.Event, error) {
	if !ValidID(id) {
		return types.Event{}, ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	event, ok := m.events[id]
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return event, nil
}

func (m *MemoryEventRepository) FindByTitleOwner(_ context.Context, title, owner string) (types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if event, ok := m.findByTitleOwner(title, owner); ok {
		return event, nil
	}
	return types.Event{}, ErrNotFound
}

func (m *MemoryEventRepository) findByTitleOwner(title, owner string) (types.Event, bool) {
	for _, event := range m.events {
		if event.Title == title && event.Owner == owner {
			return event, true
		}
	}
	return types.Event{}, false
}

func (m *MemoryEventRepository) Create(_ context.Context, event types.Event) (types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findByTitleOwner(event.Title, event.Owner); ok {
		return types.Event{}, ErrDuplicate
	}
	now := time.Now().UTC()
	event.ID = NewID()
	event.CreatedAt = now
	event.UpdatedAt = now
	m.events[event.ID] = event
	return event, nil
}

// Replace overwrites every mutable field of the stored event. CreatedAt is kept.
func (m *MemoryEventRepository) Replace(_ context.Context, event types.Event) (types.Event, error) {
	if !ValidID(event.ID) {
		return types.Event{}, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.events[event.ID]
	if !ok {
		return types.Event{}, ErrNotFound
	}
	if other, ok := m.findByTitleOwner(event.Title, event.Owner); ok && other.ID != event.ID {
		return types.Event{}, ErrDuplicate
	}
	event.CreatedAt = current.CreatedAt
	event.UpdatedAt = time.Now().UTC()
	m.events[event.ID] = event
	return event, nil
}

func (m *MemoryEventRepository) Delete(_ context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}
