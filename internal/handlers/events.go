package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evently/apiserver/internal/services"
	"github.com/evently/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
)

const (
	maxFormMemory   = 16 << 20
	maxFlyerBytes   = 10 << 20
	formFieldTitle  = "title"
	formFieldDesc   = "description"
	formFieldDate   = "event_date"
	formFieldStart  = "start_time"
	formFieldEnd    = "end_time"
	formFieldFlyer  = "flyer"
	shortTimeLayout = "15:04"
)

// EventForm is the parsed multipart payload of create and replace.
type EventForm struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"required"`
	EventDate   string `form:"event_date" validate:"required,date"`
	StartTime   string `form:"start_time" validate:"required"`
	EndTime     string `form:"end_time" validate:"required"`
	Flyer       *types.Flyer
}

// EventHandler provides HTTP handlers for events.
type EventHandler struct {
	events   *services.EventService
	validate *validator.Validate
	log      *slog.Logger
}

func NewEventHandler(events *services.EventService, log *slog.Logger) *EventHandler {
	return &EventHandler{events: events, validate: newValidator(), log: log}
}

// EventRouter registers event routes on the given router.
func EventRouter(r chi.Router, events *services.EventService, guard *Guard, log *slog.Logger) {
	handler := NewEventHandler(events, log)

	r.Get("/", handler.ListEvents)
	r.With(guard.Require(types.PermPostEvent)).Post("/", handler.CreateEvent)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Get("/", handler.GetEvent)
		r.Get("/similar", handler.SimilarEvents)
		r.With(guard.Require(types.PermPutEvent)).Put("/", handler.ReplaceEvent)
		r.With(guard.Authenticated).Delete("/", handler.DeleteEvent)
	})
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := types.EventFilter{
		Title:       strings.TrimSpace(query.Get("title")),
		Description: strings.TrimSpace(query.Get("description")),
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filter.Title, filter.Description = q, q
	}

	events, err := h.events.List(r.Context(), filter, page)
	if err != nil {
		respondError(w, r, h.log, "list events", err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Data: events})
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, r, h.log, "get event", err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Data: event})
}

func (h *EventHandler) SimilarEvents(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.events.Similar(r.Context(), chi.URLParam(r, "eventID"), page)
	if err != nil {
		respondError(w, r, h.log, "similar events", err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Data: events})
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	owner, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	form, err := h.parseEventForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Create(r.Context(), owner, form.input())
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			writeError(w, r, http.StatusConflict, "event with this title already exists")
			return
		}
		respondError(w, r, h.log, "create event", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, MessageResponse{Message: "Event added successfully", Data: event})
}

func (h *EventHandler) ReplaceEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	form, err := h.parseEventForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Replace(r.Context(), actor, chi.URLParam(r, "eventID"), form.input())
	if err != nil {
		respondError(w, r, h.log, "replace event", err)
		return
	}

	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "Event replaced successfully", Data: event})
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFromContext(r.Context())
	if err := h.events.Delete(r.Context(), actor, chi.URLParam(r, "eventID")); err != nil {
		respondError(w, r, h.log, "delete event", err)
		return
	}
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "Event deleted successfully"})
}

func (f EventForm) input() services.EventInput {
	return services.EventInput{
		Title:       f.Title,
		Description: f.Description,
		EventDate:   f.EventDate,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Flyer:       f.Flyer,
	}
}

func (h *EventHandler) parseEventForm(r *http.Request) (EventForm, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return EventForm{}, errors.New("invalid multipart form")
	}

	form := EventForm{
		Title:       strings.TrimSpace(r.FormValue(formFieldTitle)),
		Description: strings.TrimSpace(r.FormValue(formFieldDesc)),
		EventDate:   strings.TrimSpace(r.FormValue(formFieldDate)),
		StartTime:   strings.TrimSpace(r.FormValue(formFieldStart)),
		EndTime:     strings.TrimSpace(r.FormValue(formFieldEnd)),
	}
	if err := h.validate.Struct(form); err != nil {
		return EventForm{}, errors.New(validationMessage(err))
	}

	var err error
	if form.StartTime, err = normalizeClock(form.StartTime); err != nil {
		return EventForm{}, fmt.Errorf("field %s: %w", formFieldStart, err)
	}
	if form.EndTime, err = normalizeClock(form.EndTime); err != nil {
		return EventForm{}, fmt.Errorf("field %s: %w", formFieldEnd, err)
	}

	form.Flyer, err = parseFlyerFile(r.MultipartForm)
	if err != nil {
		return EventForm{}, err
	}
	return form, nil
}

// normalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeClock(value string) (string, error) {
	for _, layout := range []string{types.TimeLayout, shortTimeLayout} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(types.TimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", value)
}

// parseFlyerFile returns nil when no flyer was uploaded.
func parseFlyerFile(form *multipart.Form) (*types.Flyer, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldFlyer]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one flyer file is allowed")
	}

	fileHeader := files[0]
	if fileHeader.Size == 0 {
		return nil, nil
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read flyer file: %w", err)
	}

	data, err := readFileLimited(file, maxFlyerBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.New("flyer must be an image")
	}

	return &types.Flyer{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func parsePage(r *http.Request) (types.Page, error) {
	var page types.Page
	var err error

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		page.Limit, err = strconv.Atoi(raw)
		if err != nil || page.Limit < 1 {
			return types.Page{}, errors.New("invalid limit")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		page.Skip, err = strconv.Atoi(raw)
		if err != nil || page.Skip < 0 {
			return types.Page{}, errors.New("invalid skip")
		}
	}
	return services.NormalizePage(page), nil
}
