package types

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Event is a scheduled happening owned by a host or admin.
type Event struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	// FlyerURL is the durable URL of the promotional image in the media host.
	FlyerURL string `json:"flyer" db:"flyer_url"`

	// EventDate uses DateLayout; StartTime and EndTime use TimeLayout and
	// carry no timezone.
	EventDate string `json:"event_date" db:"event_date"`
	StartTime string `json:"start_time" db:"start_time"`
	EndTime   string `json:"end_time" db:"end_time"`

	// Owner is the ID of the user that created the event.
	Owner string `json:"owner" db:"owner"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EventFilter selects events by case-insensitive substring match. An empty
// term is ignored; when both are empty every event matches. A non-empty
// ExcludeID removes that event from the result.
type EventFilter struct {
	Title       string
	Description string
	ExcludeID   string
}

// Page is a limit/skip window over an ordered result set.
type Page struct {
	Limit int
	Skip  int
}

// Flyer is an uploaded or generated image that has not yet been stored.
type Flyer struct {
	Filename    string
	ContentType string
	Data        []byte
}
