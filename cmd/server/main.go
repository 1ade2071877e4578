package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/microsoft/go-mssqldb" // registers "sqlserver"
	_ "modernc.org/sqlite"              // registers "sqlite"

	"github.com/JonMunkholm/gridsource/internal/config"
	"github.com/JonMunkholm/gridsource/internal/logging"
	"github.com/JonMunkholm/gridsource/internal/metrics"
	"github.com/JonMunkholm/gridsource/internal/metrics/datadog"
	"github.com/JonMunkholm/gridsource/internal/source"
	"github.com/JonMunkholm/gridsource/internal/web"
)

func main() {
	// Overload so a local .env wins over the shell
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runner source.Runner

	if cfg.Database.URL != "" {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		runner.Postgres = pool
	}

	if cfg.SQL.Driver != "" {
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			slog.Error("failed to open sql database", "driver", cfg.SQL.Driver, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.SQL.MaxOpenConns)

		if err := db.PingContext(ctx); err != nil {
			slog.Error("failed to ping sql database", "driver", cfg.SQL.Driver, "error", err)
			os.Exit(1)
		}
		slog.Info("connected to sql database", "driver", cfg.SQL.Driver)
		runner.SQL = db
	}

	var catalog *source.Catalog
	if cfg.Source.CatalogFile != "" {
		catalog, err = source.LoadCatalog(cfg.Source.CatalogFile)
		if err != nil {
			slog.Error("failed to load source catalog", "error", err)
			os.Exit(1)
		}
		slog.Info("sources registered", "count", catalog.Len())
	}

	var backend metrics.Backend = metrics.Nop{}
	if cfg.Metrics.Enabled {
		tags := cfg.Metrics.Tags
		if len(tags) == 0 {
			tags = datadog.ParseTagsCSV(os.Getenv("DD_TAGS"))
		}
		dd := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.JobName,
			Tags:       tags,
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		defer func() {
			if err := dd.Close(); err != nil {
				slog.Warn("final metrics flush failed", "error", err)
			}
		}()
		backend = dd
		slog.Info("datadog metrics enabled", "job", cfg.Metrics.JobName, "flush_every", cfg.Metrics.FlushEvery)
	}

	server := web.NewServer(cfg, web.Deps{
		Catalog: catalog,
		Runner:  runner,
		Metrics: backend,
	})

	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

// openPool connects to Postgres with the configured pool limits.
func openPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)
	poolConfig.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to postgres", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to postgres")
	}
	return pool, nil
}
