package services

import (
	"context"
	"sync"

	"github.com/evently/apiserver/internal/notify"
	"github.com/evently/apiserver/types"
)

// fakeFlyers returns a URL derived from the upload or the event title.
type fakeFlyers struct {
	generated int
	err       error
}

func (f *fakeFlyers) FlyerURL(_ context.Context, event types.Event, flyer *types.Flyer) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if flyer != nil {
		return "https://media.test/" + flyer.Filename, nil
	}
	f.generated++
	return "https://media.test/generated/" + event.Title + ".png", nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.notes))
	for _, note := range r.notes {
		kinds = append(kinds, note.Kind)
	}
	return kinds
}
