// Command porterd runs the RPC endpoint: load configuration, migrate the
// schema, wire the dispatcher, and serve until signaled.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/porterapi/porter/db"
	"github.com/porterapi/porter/internal/api"
	"github.com/porterapi/porter/internal/apilog"
	"github.com/porterapi/porter/internal/config"
	"github.com/porterapi/porter/internal/crud"
	"github.com/porterapi/porter/internal/database"
	"github.com/porterapi/porter/internal/dispatch"
	"github.com/porterapi/porter/internal/log"
	"github.com/porterapi/porter/internal/session"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: true})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting porterd", "addr", cfg.ListenAddr, "debug", cfg.Debug)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store := database.New(pool, logger)
	guard := session.NewGuard(pool, nil, cfg.SessionTimeout, cfg.SessionLife, logger)
	reqlog := apilog.New(pool, logger)
	account := crud.NewAccount(guard, crud.NewBcryptHasher())

	registry := dispatch.NewRegistry()
	account.Register(registry)
	for table := range cfg.Resources {
		crud.RegisterResource(registry, table)
	}

	operator, err := operatorPartition(cfg.Resources)
	if err != nil {
		return fmt.Errorf("building permission map: %w", err)
	}
	permissions := dispatch.NewMap(crud.BuiltinPartition(), operator)

	dispatcher := dispatch.New(dispatch.Config{
		Debug:             cfg.Debug,
		ForceSSL:          cfg.ForceSSL,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BatchLimit:        cfg.BatchLimit,
	}, permissions, registry, guard, reqlog, reqlog,
		func() dispatch.Datastore { return store.Begin() }, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Dispatcher:   dispatcher,
		Pool:         pool,
		TrustProxy:   cfg.TrustProxy,
		CookieDomain: cfg.CookieDomain,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready", "endpoint", "/api", "health", "/healthz, /readyz")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// operatorPartition expands the configured resource map into permission
// entries, resolving each method name against the standard method set.
func operatorPartition(resources map[string]config.ResourceConfig) (dispatch.Partition, error) {
	standard := crud.StandardMethods()
	partition := dispatch.Partition{
		Session:    dispatch.CallMap{},
		NonSession: dispatch.CallMap{},
	}

	add := func(calls dispatch.CallMap, table string, methods []string) error {
		if len(methods) == 0 {
			return nil
		}
		entry := map[string][]string{}
		for _, method := range methods {
			params, ok := standard[method]
			if !ok {
				return fmt.Errorf("resource %q: unknown method %q", table, method)
			}
			entry[method] = params
		}
		calls[table] = entry
		return nil
	}

	for table, rc := range resources {
		if err := add(partition.Session, table, rc.Session); err != nil {
			return dispatch.Partition{}, err
		}
		if err := add(partition.NonSession, table, rc.NonSession); err != nil {
			return dispatch.Partition{}, err
		}
	}
	return partition, nil
}
