package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/evently/apiserver/internal/services"
	"github.com/evently/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=host guest"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ReplaceUserRequest struct {
	Username string `json:"username" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin host guest"`
}

type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

// UserHandler provides account endpoints.
type UserHandler struct {
	users    *services.UserService
	validate *validator.Validate
	log      *slog.Logger
}

func NewUserHandler(users *services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, validate: newValidator(), log: log}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, users *services.UserService, guard *Guard, loginLimiter *RateLimiter, log *slog.Logger) {
	handler := NewUserHandler(users, log)

	r.Post("/register", handler.Register)
	if loginLimiter != nil {
		r.With(loginLimiter.Middleware).Post("/login", handler.Login)
	} else {
		r.Post("/login", handler.Login)
	}
	r.With(guard.Authenticated).Get("/me", handler.Me)
	r.Route("/{userID}", func(r chi.Router) {
		r.With(guard.Require(types.PermPutUser)).Put("/", handler.ReplaceUser)
		r.With(guard.Require(types.PermDeleteUser)).Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req, func(get func(string) string) {
		req.Username = get("username")
		req.Email = get("email")
		req.Password = get("password")
		req.Role = get("role")
	}); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.users.Register(r.Context(), services.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     types.Role(req.Role),
	})
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			writeError(w, r, http.StatusConflict, "user already exists")
			return
		}
		respondError(w, r, h.log, "register", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, MessageResponse{Message: "User registered successfully!", Data: user})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req, func(get func(string) string) {
		req.Email = get("email")
		req.Password = get("password")
	}); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "email or password not found")
		case errors.Is(err, services.ErrUnauthenticated):
			writeError(w, r, http.StatusUnauthorized, "incorrect email or password")
		default:
			respondError(w, r, h.log, "login", err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, LoginResponse{Message: "User logged in successfully!", AccessToken: token})
}

// Me returns the current authenticated user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Data: user})
}

func (h *UserHandler) ReplaceUser(w http.ResponseWriter, r *http.Request) {
	var req ReplaceUserRequest
	if err := decodeBody(r, &req, func(get func(string) string) {
		req.Username = get("username")
		req.Role = get("role")
	}); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.users.Replace(r.Context(), chi.URLParam(r, "userID"), services.UserUpdate{
		Username: req.Username,
		Role:     types.Role(req.Role),
	})
	if err != nil {
		respondError(w, r, h.log, "replace user", err)
		return
	}

	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "User replaced successfully", Data: user})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		respondError(w, r, h.log, "delete user", err)
		return
	}
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// decodeBody reads a JSON body into dst, or calls fromForm with a field
// getter for url-encoded and multipart bodies.
func decodeBody(r *http.Request, dst any, fromForm func(get func(string) string)) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return err
		}
		fromForm(r.PostForm.Get)
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return err
		}
		fromForm(r.FormValue)
		return nil
	default:
		return render.DecodeJSON(r.Body, dst)
	}
}
