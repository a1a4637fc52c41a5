// Package notify publishes event and user lifecycle notifications to the
// message broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/internal/mq"
)

const (
	KindEventCreated   = "event.created"
	KindEventReplaced  = "event.replaced"
	KindEventDeleted   = "event.deleted"
	KindUserRegistered = "user.registered"

	attrKind = "kind"
)

// Notification is the JSON body of every published message.
type Notification struct {
	Kind       string    `json:"kind"`
	SubjectID  string    `json:"subject_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is the broker surface the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Notifier publishes notifications on a single topic. Publishing is best
// effort: failures are logged and never returned to the caller.
type Notifier struct {
	pub   Publisher
	topic string
	log   *slog.Logger
	now   func() time.Time
}

func New(pub Publisher, topic string, log *slog.Logger) *Notifier {
	return &Notifier{pub: pub, topic: topic, log: log, now: time.Now}
}

// Notify publishes n, filling OccurredAt when unset.
func (n *Notifier) Notify(ctx context.Context, note Notification) {
	if n == nil || n.pub == nil {
		return
	}
	if note.OccurredAt.IsZero() {
		note.OccurredAt = n.now().UTC()
	}

	data, err := json.Marshal(note)
	if err != nil {
		n.log.Error("failed to encode notification", slog.String("kind", note.Kind), sl.Err(err))
		return
	}

	id, err := n.pub.Publish(ctx, n.topic, data, map[string]string{attrKind: note.Kind})
	if err != nil {
		n.log.Warn("failed to publish notification",
			slog.String("kind", note.Kind),
			slog.String("subject_id", note.SubjectID),
			sl.Err(err),
		)
		return
	}
	n.log.Debug("notification published", slog.String("kind", note.Kind), slog.String("message_id", id))
}

// Decode parses a message produced by Notify.
func Decode(msg mq.Message) (Notification, error) {
	var note Notification
	if err := json.Unmarshal(msg.Data, &note); err != nil {
		return Notification{}, fmt.Errorf("decode notification %s: %w", msg.ID, err)
	}
	if note.Kind == "" {
		note.Kind = msg.Attributes[attrKind]
	}
	return note, nil
}
