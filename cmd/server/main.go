package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/surveylogic/internal/audit"
	"github.com/liamcoop/surveylogic/internal/config"
	"github.com/liamcoop/surveylogic/internal/logger"
	"github.com/liamcoop/surveylogic/multitenantengine"
	"github.com/liamcoop/surveylogic/survey"
)

type Server struct {
	db             *sql.DB
	engineManager  *multitenantengine.MultiTenantEngineManager
	recorder       audit.Recorder
	requestTimeout time.Duration
	router         *chi.Mux
}

// NewServer opens the configured database, loads its tenants and builds
// the router
func NewServer(cfg *config.AppConfig) (*Server, error) {
	db, dialect, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.File != "" {
		recorder = audit.NewJSONLRecorder(cfg.Audit.File, cfg.Audit.MaxSize, cfg.Audit.MaxBackups)
	}

	s, err := NewServerWithDB(db, dialect, survey.CacheConfig{TTL: cfg.Cache.TTL}, recorder, cfg.Server.RequestTimeout)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	return s, nil
}

// NewServerWithDB builds a server over an already opened database.
// A nil db keeps every tenant in memory.
func NewServerWithDB(db *sql.DB, dialect survey.Dialect, cache survey.CacheConfig, recorder audit.Recorder, requestTimeout time.Duration) (*Server, error) {
	engineManager := multitenantengine.NewMultiTenantEngineManager(db, dialect, cache)

	n, err := engineManager.LoadAllTenants()
	if err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}
	logger.Info("tenants loaded", "count", n)

	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	s := &Server{
		db:             db,
		engineManager:  engineManager,
		recorder:       recorder,
		requestTimeout: requestTimeout,
	}
	s.setupRoutes()
	return s, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, survey.Dialect, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.URL)
		if err != nil {
			return nil, survey.Postgres, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, survey.Postgres, fmt.Errorf("failed to ping database: %w", err)
		}
		return db, survey.Postgres, nil

	case config.DriverSQLite:
		db, err := survey.OpenSQLite(cfg.URL)
		return db, survey.SQLite, err
	}
	return nil, survey.Postgres, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/expressions/evaluate", s.handleEvaluateExpression)
	r.Get("/api/v1/expressions/functions", s.handleListFunctions)
	r.Post("/api/v1/conditions/evaluate", s.handleEvaluateCondition)

	r.Route("/api/v1/tenants", func(r chi.Router) {
		r.Get("/", s.handleListTenants)
		r.Post("/", s.handleCreateTenant)

		r.Route("/{tenantId}/surveys", func(r chi.Router) {
			r.Get("/", s.handleListSurveys)

			r.Route("/{surveyId}", func(r chi.Router) {
				r.Put("/", s.handleSaveSurvey)
				r.Get("/", s.handleGetSurvey)
				r.Get("/validate", s.handleValidateSurvey)
				r.Post("/next", s.handleNextQuestion)
				r.Post("/questions/{questionId}/display", s.handleShouldDisplay)
				r.Post("/pipe", s.handlePipe)
				r.Post("/calculate", s.handleCalculate)

				r.Get("/rules", s.handleListRules)
				r.Post("/rules", s.handleCreateRule)
				r.Get("/rules/{ruleId}", s.handleGetRule)
				r.Put("/rules/{ruleId}", s.handleUpdateRule)
				r.Delete("/rules/{ruleId}", s.handleDeleteRule)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database and the audit file
func (s *Server) Close() error {
	err := s.recorder.Close()
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

func main() {
	configPath := flag.String("config", "", "configuration file (optional, environment variables override it)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Unable to load configuration", "error", err)
	}
	if level, err := logger.ParseLevel(cfg.Logger.Level); err == nil {
		logger.SetLevel(level)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", "address", cfg.Server.Address, "driver", cfg.Database.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := server.Close(); err != nil {
		logger.Error("Failed to release resources", "error", err)
	}
	_ = logger.Shutdown(shutdownCtx)

	logger.Info("Server stopped")
}
