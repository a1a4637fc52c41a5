package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evently/apiserver/types"
)

const eventColumns = `id, title, description, flyer_url, event_date, start_time, end_time, owner, created_at, updated_at`

// EventRepository handles persistence for events in PostgreSQL.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error) {
	where, args, err := eventWhere(filter)
	if err != nil {
		return nil, err
	}

	args = append(args, page.Skip, page.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY id
		OFFSET $%d LIMIT $%d`, eventColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]types.Event, 0, page.Limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (types.Event, error) {
	if !ValidID(id) {
		return types.Event{}, ErrInvalidID
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEventRow(r.db.QueryRowContext(ctx, query, id))
}

func (r *EventRepository) FindByTitleOwner(ctx context.Context, title, owner string) (types.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE title = $1 AND owner = $2`
	return scanEventRow(r.db.QueryRowContext(ctx, query, title, owner))
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now().UTC()
	event.ID = NewID()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
		INSERT INTO events (id, title, description, flyer_url, event_date, start_time, end_time, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.Title,
		event.Description,
		event.FlyerURL,
		event.EventDate,
		event.StartTime,
		event.EndTime,
		event.Owner,
		event.CreatedAt,
		event.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Event{}, ErrDuplicate
		}
		return types.Event{}, err
	}
	return event, nil
}

// Replace overwrites every mutable field of the stored event. CreatedAt is kept.
func (r *EventRepository) Replace(ctx context.Context, event types.Event) (types.Event, error) {
	if !ValidID(event.ID) {
		return types.Event{}, ErrInvalidID
	}
	event.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE events
		SET title = $1,
			description = $2,
			flyer_url = $3,
			event_date = $4,
			start_time = $5,
			end_time = $6,
			owner = $7,
			updated_at = $8
		WHERE id = $9
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		event.Title,
		event.Description,
		event.FlyerURL,
		event.EventDate,
		event.StartTime,
		event.EndTime,
		event.Owner,
		event.UpdatedAt,
		event.ID,
	).Scan(&event.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return types.Event{}, ErrDuplicate
		}
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (types.Event, error) {
	var event types.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.FlyerURL,
		&event.EventDate,
		&event.StartTime,
		&event.EndTime,
		&event.Owner,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	return event, err
}

func scanEventRow(row *sql.Row) (types.Event, error) {
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

// eventWhere builds the WHERE clause for filter. Terms are matched with ILIKE
// after escaping the LIKE wildcards.
func eventWhere(filter types.EventFilter) (string, []any, error) {
	var (
		conds []string
		or    []string
		args  []any
	)
	if term := strings.TrimSpace(filter.Title); term != "" {
		args = append(args, containsPattern(term))
		or = append(or, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if term := strings.TrimSpace(filter.Description); term != "" {
		args = append(args, containsPattern(term))
		or = append(or, fmt.Sprintf(`description ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(or) > 0 {
		conds = append(conds, "("+strings.Join(or, " OR ")+")")
	}
	if filter.ExcludeID != "" {
		if !ValidID(filter.ExcludeID) {
			return "", nil, ErrInvalidID
		}
		args = append(args, filter.ExcludeID)
		conds = append(conds, fmt.Sprintf(`id <> $%d`, len(args)))
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
