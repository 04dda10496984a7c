package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-scorm/internal/course"
	"github.com/p-n-ai/pai-scorm/internal/debug"
	"github.com/p-n-ai/pai-scorm/internal/httpapi"
	"github.com/p-n-ai/pai-scorm/internal/localstore"
	"github.com/p-n-ai/pai-scorm/internal/platform/cache"
	"github.com/p-n-ai/pai-scorm/internal/platform/config"
	"github.com/p-n-ai/pai-scorm/internal/platform/database"
	"github.com/p-n-ai/pai-scorm/internal/platform/logging"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

// healthChecker is a dependency that /readyz pings.
type healthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var checks []healthChecker

	var db *database.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		checks = append(checks, db)
	}

	var rdb *cache.Cache
	if cfg.Cache.URL != "" {
		var err error
		rdb, err = cache.New(ctx, cfg.Cache)
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		defer rdb.Close()
		checks = append(checks, rdb)
	}

	stores, closeStores, err := newStoreFactory(ctx, cfg, db, rdb)
	if err != nil {
		return err
	}
	defer closeStores()

	courses, err := course.NewLoader(cfg.CoursePath)
	if err != nil {
		return fmt.Errorf("load courses: %w", err)
	}
	logger.Info("courses loaded", "path", cfg.CoursePath, "count", len(courses.AllCourses()))

	preferred, _ := scorm.ParseVersion(cfg.SCORM.Version)
	sink := debug.New(cfg.Debug.Enabled, cfg.Debug.Capacity, logger)

	api := httpapi.New(httpapi.Deps{
		Courses:          courses,
		Stores:           stores,
		Runtimes:         newRuntimeFactory(cfg.SCORM.Runtime, preferred),
		Sink:             sink,
		Logger:           logger,
		PreferredVersion: preferred,
		SCORMDebug:       cfg.SCORM.Debug,
		Debounce:         cfg.Data.Debounce,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newMux(checks, api.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", srv.Addr,
			"store", cfg.Store.Driver,
			"scorm_runtime", cfg.SCORM.Runtime,
			"scorm_version", cfg.SCORM.Version,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Error("closing learner sessions", "error", err)
	}
	return nil
}

// newStoreFactory returns the fallback store for cfg.Store.Driver and a
// func releasing anything it opened.
func newStoreFactory(ctx context.Context, cfg *config.Config, db *database.DB, rdb *cache.Cache) (localstore.Factory, func(), error) {
	switch cfg.Store.Driver {
	case "redis":
		store := rdb.Store(cfg.Store.SessionTTL)
		return func(ns string) localstore.Store { return store.Namespace(ns) }, func() {}, nil
	case "postgres":
		store, err := db.Store(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("prepare postgres store: %w", err)
		}
		return func(ns string) localstore.Store { return store.Namespace(ns) }, func() {}, nil
	case "sqlite":
		store, err := localstore.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return func(ns string) localstore.Store { return store.Namespace(ns) }, func() { store.Close() }, nil
	default:
		store := localstore.NewMemoryStore()
		return func(ns string) localstore.Store { return store.Namespace(ns) }, func() {}, nil
	}
}

// newRuntimeFactory returns nil runtimes for "none", so every session runs
// on the fallback store.
func newRuntimeFactory(kind string, version scorm.Version) httpapi.RuntimeFactory {
	if kind != "memory" {
		return func(string, string) scorm.Runtime { return nil }
	}
	lms := scorm.NewMemoryLMS(version)
	return func(courseID, learnerID string) scorm.Runtime {
		return lms.Runtime(courseID + "/" + learnerID)
	}
}

// newMux mounts the health endpoints next to the API.
func newMux(checks []healthChecker, api http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	if api != nil {
		mux.Handle("/api/", api)
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks []healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.HealthCheck(ctx); err != nil {
				failed[c.Name()] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
