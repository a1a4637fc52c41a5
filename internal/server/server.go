package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/internal/auth"
	"github.com/evently/apiserver/internal/cache"
	"github.com/evently/apiserver/internal/db"
	"github.com/evently/apiserver/internal/handlers"
	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/internal/media"
	"github.com/evently/apiserver/internal/mq"
	"github.com/evently/apiserver/internal/notify"
	"github.com/evently/apiserver/internal/services"
	"github.com/evently/apiserver/internal/storage"
	"github.com/evently/apiserver/internal/store"
	"github.com/evently/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Users        services.UserRepository
	Events       services.EventRepository
	Flyers       services.FlyerProvider
	Notifier     services.Notifier
	Tokens       *auth.TokenIssuer
	Permissions  types.PermissionTable
	LoginLimiter *handlers.RateLimiter
	Pingers      map[string]handlers.Pinger
	// RequestTimeout bounds every request; zero disables the timeout.
	RequestTimeout time.Duration
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// New connects every configured backend and constructs a Server.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{log: log}
	deps, err := s.connect(ctx, cfg)
	if err != nil {
		_ = s.closeAll()
		return nil, err
	}

	s.router = NewRouter(deps, log)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: deps.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) connect(ctx context.Context, cfg config.Config) (Deps, error) {
	deps := Deps{
		Tokens:       auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Permissions:  types.DefaultPermissions(),
		LoginLimiter: handlers.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst),
		Pingers:      map[string]handlers.Pinger{},
		// Two upstream attempts plus slack for the store round trips.
		RequestTimeout: 2*cfg.UpstreamTimeout + 30*time.Second,
	}

	if err := s.openStore(ctx, cfg, &deps); err != nil {
		return Deps{}, err
	}

	if cfg.Redis.Addr != "" {
		c, err := cache.New(ctx, cfg.Redis)
		if err != nil {
			return Deps{}, fmt.Errorf("connect redis: %w", err)
		}
		s.onClose("redis", c.Close)
		deps.Events = cache.NewEventRepositoryCache(deps.Events, c, s.log)
		deps.Pingers["cache"] = c.Ping
	}

	flyers, err := s.openMedia(ctx, cfg)
	if err != nil {
		return Deps{}, err
	}
	deps.Flyers = flyers

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return Deps{}, err
	}
	if broker != nil {
		s.onClose("mq", broker.Close)
		deps.Notifier = notify.New(broker, cfg.MQ.Topic, s.log)
	}

	return deps, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.Config, deps *Deps) error {
	switch cfg.StoreBackend {
	case config.StoreMongo:
		client, database, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		s.onClose("mongo", func() error { return client.Disconnect(context.Background()) })

		users := store.NewMongoUserRepository(database)
		events := store.NewMongoEventRepository(database)
		if err := users.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure user indexes: %w", err)
		}
		if err := events.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure event indexes: %w", err)
		}
		deps.Users, deps.Events = users, events
		deps.Pingers["store"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	case config.StorePostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		s.onClose("postgres", conn.Close)
		deps.Users = store.NewUserRepository(conn)
		deps.Events = store.NewEventRepository(conn)
		deps.Pingers["store"] = conn.PingContext
	case config.StoreMemory:
		s.log.Warn("using in-memory store; data is lost on restart")
		deps.Users = store.NewMemoryUserRepository()
		deps.Events = store.NewMemoryEventRepository()
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return nil
}

func (s *Server) openMedia(ctx context.Context, cfg config.Config) (*media.Pipeline, error) {
	var uploader media.Uploader
	switch cfg.Media.Backend {
	case config.MediaCloudinary:
		up, err := media.NewCloudinaryUploader(cfg.Cloudinary)
		if err != nil {
			return nil, fmt.Errorf("configure cloudinary: %w", err)
		}
		uploader = up
	case config.MediaMinio, config.MediaGCS:
		backend, err := openObjectStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		objects := storage.NewStorage(backend, cfg.Media.PublicBaseURL)
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}
		if c, ok := backend.(io.Closer); ok {
			s.onClose(cfg.Media.Backend, c.Close)
		}
		uploader = media.NewStorageUploader(objects)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Media.Backend)
	}

	var generator media.Generator
	if cfg.ImageGen.APIKey != "" {
		gen, err := media.NewGenAIGenerator(ctx, cfg.ImageGen)
		if err != nil {
			return nil, fmt.Errorf("configure image generation: %w", err)
		}
		generator = gen
	} else {
		s.log.Warn("image generation disabled; events without a flyer will be rejected")
	}

	return media.NewPipeline(generator, uploader, cfg.Media.Folder, cfg.UpstreamTimeout, s.log), nil
}

func openObjectStorage(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	if cfg.Media.Backend == config.MediaGCS {
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		return client, nil
	}
	client, err := storage.NewMinioClient(cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return client, nil
}

// NewRouter builds the chi router over deps.
func NewRouter(deps Deps, log *slog.Logger) *chi.Mux {
	userService := services.NewUserService(deps.Users, auth.NewPasswordHasher(bcrypt.DefaultCost), deps.Tokens, deps.Notifier)
	eventService := services.NewEventService(deps.Events, deps.Flyers, deps.Notifier)
	guard := handlers.NewGuard(deps.Tokens, userService, auth.NewAuthorizer(deps.Permissions), log)
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		metrics.Middleware,
	)
	if deps.RequestTimeout > 0 {
		router.Use(middleware.Timeout(deps.RequestTimeout))
	}

	router.Get("/", handlers.Home)
	router.Get("/healthz", handlers.Healthz(log, deps.Pingers))
	router.Handle("/metrics", metrics.Handler())
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, guard, deps.LoginLimiter, log)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, eventService, guard, log)
	})
	return router
}

func (s *Server) onClose(name string, close func() error) {
	s.closers = append(s.closers, namedCloser{name: name, close: close})
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting server", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.closeAll())
}

func (s *Server) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.close(); err != nil {
			s.log.Warn("failed to close backend", slog.String("backend", c.name), sl.Err(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
