package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/internal/services"
	"github.com/evently/apiserver/types"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

type contextKey string

const (
	contextSubjectKey contextKey = "sub"
	contextUserKey    contextKey = "user"
)

// DataResponse wraps read results.
type DataResponse struct {
	Data any `json:"data"`
}

// MessageResponse wraps write results.
type MessageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func userIDFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok || strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	return subject, nil
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, value any) {
	render.Status(r, status)
	render.JSON(w, r, value)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Error: message})
}

// respondError maps err onto a status code and logs it once.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error) {
	status, message := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, services.ErrInvalidID):
		status, message = http.StatusUnprocessableEntity, "invalid id"
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrConflict):
		status, message = http.StatusConflict, "already exists"
	case errors.Is(err, services.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrUpstream):
		status, message = http.StatusBadGateway, "upstream service failed"
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.LogAttrs(r.Context(), level, op+" failed",
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		sl.Err(err),
	)
	writeError(w, r, status, message)
}

// validationMessage joins validator failures into one readable message.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s characters", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of: %s", field, fe.Param()))
		case "date":
			msgs = append(msgs, fmt.Sprintf("field %s must be a date in YYYY-MM-DD format", field))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return strings.Join(msgs, ", ")
}

// newValidator reports fields by their json or form key and knows the
// "date" tag (YYYY-MM-DD).
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	if err := v.RegisterValidation("date", isDate); err != nil {
		panic(err)
	}
	return v
}

func fieldName(field reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(field.Tag.Get(key), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(field.Name)
}

func isDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(types.DateLayout, fl.Field().String())
	return err == nil
}
