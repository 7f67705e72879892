package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/muebles/internal/budget"
	"github.com/Simplici0/muebles/internal/config"
	"github.com/Simplici0/muebles/internal/db"
	"github.com/Simplici0/muebles/internal/migrations"
	"github.com/Simplici0/muebles/internal/seed"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	db     *sql.DB
	log    *zap.Logger
	budget *budget.Service
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if cfg.RunMigrations {
		if err := migrations.Up(database); err != nil {
			logger.Fatal("failed to run database migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
	}

	stats, err := seed.Run(context.Background(), database, seed.Config{Demo: cfg.SeedDemo}, logger)
	if err != nil {
		logger.Fatal("failed to run startup seed", zap.Error(err))
	}
	logger.Info("startup seed finished", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))

	srv := newServer(database, logger, budget.Options{
		Policy: cfg.Policy,
		Times:  cfg.Times,
		Solver: cfg.Solver,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", httpSrv.Addr), zap.String("env", cfg.Env))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func newServer(database *sql.DB, logger *zap.Logger, opts budget.Options) *server {
	return &server{
		db:     database,
		log:    logger,
		budget: budget.New(database, logger, opts),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Post("/pieces/{id}/recalculate", s.handlePieceRecalculate)
	r.Post("/lines/{id}/recalculate", s.handleLineRecalculate)

	r.Route("/budgets/{id}", func(r chi.Router) {
		r.Post("/price", s.handleBudgetPrice)
		r.Post("/solve", s.handleBudgetSolve)
		r.Post("/reconcile", s.handleBudgetReconcile)
	})

	r.Route("/rates/{budget}/{version}/{operator}", func(r chi.Router) {
		r.Get("/", s.rateHandler(getRates))
		r.Put("/", s.rateHandler(putRates))
		r.Post("/reset", s.rateHandler(resetRates))
		r.Get("/mode", s.rateHandler(getMode))
		r.Put("/mode", s.rateHandler(putMode))
	})

	return r
}

// requestID assigns a uuid correlation id to requests that arrive without one,
// stores it where middleware.GetReqID finds it and echoes it back.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
