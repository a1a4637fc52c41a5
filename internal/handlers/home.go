package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/evently/apiserver/internal/lib/sl"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

func Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "You are on the home page"})
}

// Healthz reports 200 when every pinger succeeds within a second.
func Healthz(log *slog.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		checks := make(map[string]string, len(pingers))
		status := http.StatusOK
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				log.Warn("health check failed", slog.String("dependency", name), sl.Err(err))
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeJSON(w, r, status, DataResponse{Data: checks})
	}
}
