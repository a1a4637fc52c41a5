package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/internal/services"
	"github.com/evently/apiserver/types"
	"golang.org/x/time/rate"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (string, error)
}

type PermissionChecker interface {
	Check(role types.Role, perm types.Permission) error
}

// UserLoader loads the caller named by the token subject.
type UserLoader interface {
	Get(ctx context.Context, id string) (types.User, error)
}

// Guard holds the authentication and authorization middleware.
type Guard struct {
	tokens TokenValidator
	users  UserLoader
	perms  PermissionChecker
	log    *slog.Logger
}

func NewGuard(tokens TokenValidator, users UserLoader, perms PermissionChecker, log *slog.Logger) *Guard {
	return &Guard{tokens: tokens, users: users, perms: perms, log: log}
}

// RequireAuth enforces a valid bearer token and injects the subject into
// the request context.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := g.tokens.Validate(tokenString)
		if err != nil {
			g.log.Debug("rejected token", slog.String("path", r.URL.Path), sl.Err(err))
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser loads the authenticated user into the context. It must run
// after RequireAuth.
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := g.users.Get(r.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidID) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			respondError(w, r, g.log, "load user", err)
			return
		}

		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require authenticates the caller and checks that their role grants perm.
func (g *Guard) Require(perm types.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := userFromContext(r.Context())
			if err := g.perms.Check(user.Role, perm); err != nil {
				g.log.Info("permission denied",
					slog.String("user_id", user.ID),
					slog.String("role", string(user.Role)),
					slog.String("permission", string(perm)),
				)
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
		return g.RequireAuth(g.RequireUser(check))
	}
}

// Authenticated is RequireAuth followed by RequireUser.
func (g *Guard) Authenticated(next http.Handler) http.Handler {
	return g.RequireAuth(g.RequireUser(next))
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// visitorIdleTTL is how long a client's limiter is kept after its last request.
const visitorIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client address. Clients idle for longer
// than visitorIdleTTL are forgotten.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= visitorIdleTTL {
		l.sweep(now)
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep must be called with mu held.
func (l *RateLimiter) sweep(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) >= visitorIdleTTL {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter(clientKey(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
