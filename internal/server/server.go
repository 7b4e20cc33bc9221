package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custdesk/apiserver/config"
	"github.com/custdesk/apiserver/internal/db"
	"github.com/custdesk/apiserver/internal/events"
	"github.com/custdesk/apiserver/internal/handlers"
	"github.com/custdesk/apiserver/internal/services"
	"github.com/custdesk/apiserver/internal/storage"
	"github.com/custdesk/apiserver/internal/store"
	"github.com/custdesk/apiserver/internal/token"
	"github.com/custdesk/apiserver/pkg/logger"
)

// Server wraps the HTTP server and its owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
	log        *logger.Logger
}

// New constructs a Server: store, token service, storage backends, event
// publisher, and routes, all chosen from config at process start.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.New(cfg.LogLevel)

	var dbConn *sql.DB
	var customerStore store.CustomerStore
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		customerStore = store.NewMemoryStore()
	case config.StoreBackendPostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		dbConn = conn
		customerStore = store.NewCustomerRepository(conn)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	closeOnErr := func() {
		if dbConn != nil {
			_ = dbConn.Close()
		}
	}

	tokens, err := token.New(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		closeOnErr()
		return nil, err
	}

	cloud, err := newCloudStorage(ctx, cfg.Storage)
	if err != nil {
		closeOnErr()
		return nil, fmt.Errorf("init cloud storage: %w", err)
	}

	localClient, err := storage.NewLocalClient(cfg.Storage.Local)
	if err != nil {
		closeOnErr()
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	if err := localClient.EnsureBucket(ctx); err != nil {
		closeOnErr()
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	local := storage.NewStorage(localClient)

	publisher, err := newPublisher(ctx, cfg.Events)
	if err != nil {
		closeOnErr()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	customerService := services.NewCustomerService(customerStore, cloud, local, publisher, log)
	authService := services.NewAuthService(customerStore, tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(log),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService)
	})
	router.Route("/customers", func(r chi.Router) {
		handlers.CustomerRouter(r, customerService, authService)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Infof("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// newCloudStorage selects the cloud object-storage backend used for
// provider=s3 uploads. Nil when neither backend is configured.
func newCloudStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch cfg.CloudProvider {
	case config.StorageProviderS3:
		if cfg.Minio.AccessKey == "" && cfg.Minio.SecretKey == "" {
			return nil, nil
		}
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case config.StorageProviderGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, errors.New("unknown cloud storage provider")
	}
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (*events.Publisher, error) {
	switch cfg.Backend {
	case config.EventsBackendNone, "":
		return nil, nil
	case config.EventsBackendRabbitMQ:
		backend, err := events.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend), nil
	case config.EventsBackendPubSub:
		backend, err := events.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// requestLogger logs one structured line per request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			log.WithFields(map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.Status(),
				"bytes":      wrapped.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Infof("request completed")
		})
	}
}
