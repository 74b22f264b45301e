package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvload/internal/catalog"
	"github.com/JonMunkholm/csvload/internal/config"
	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/logging"
	"github.com/JonMunkholm/csvload/internal/schema"
	"github.com/JonMunkholm/csvload/internal/store"
)

// app carries what every subcommand shares once the root command has loaded
// the configuration.
type app struct {
	envFile   string
	schemaDir string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "csvload",
		Short:         "Load CSV exports into records through declared loaders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "env file to load before reading configuration")
	root.PersistentFlags().StringVar(&a.schemaDir, "schema-dir", "", "directory of YAML loader schemas (default $LOAD_SCHEMA_DIR)")

	root.AddCommand(
		newLoadCmd(a),
		newLoadersCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	// Values in the env file win over the process environment.
	if err := godotenv.Overload(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return withCode(exitUsage, fmt.Errorf("load %s: %w", a.envFile, err))
	}

	cfg, err := config.Load()
	if err != nil {
		return withCode(exitUsage, err)
	}
	if a.schemaDir != "" {
		cfg.Load.SchemaDir = a.schemaDir
	}
	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	a.cfg = cfg
	return nil
}

func (a *app) defaults() schema.Defaults {
	return schema.Defaults{
		Encoding:      a.cfg.Load.Encoding,
		Delimiter:     a.cfg.Load.Delimiter,
		Header:        a.cfg.Load.Header,
		CarryBindings: a.cfg.Load.CarryBindings,
		InvalidUTF8:   a.cfg.Load.InvalidUTF8,
	}
}

// registry builds the built-in catalog plus every schema in the schema
// directory and extra, all persisting through factory. A document in extra
// replaces a directory document with the same key.
func (a *app) registry(factory store.Factory, extra ...schema.Document) (*core.Registry, error) {
	reg := core.NewRegistry()
	if err := catalog.Register(reg, factory); err != nil {
		return nil, err
	}

	dirDocs, err := schema.LoadDir(a.cfg.Load.SchemaDir)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	overridden := lo.Map(extra, func(d schema.Document, _ int) string { return d.Key })
	docs := lo.Filter(dirDocs, func(d schema.Document, _ int) bool { return !lo.Contains(overridden, d.Key) })
	docs = append(docs, extra...)

	if err := schema.RegisterAll(reg, docs, factory, a.defaults()); err != nil {
		return nil, withCode(exitUsage, err)
	}
	slog.Debug("loaders registered", "count", reg.Len(), "schemas", len(docs))
	return reg, nil
}

// connect opens and pings the configured Postgres pool.
func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, withCode(exitUsage, err)
	}

	poolConfig, err := pgxpool.ParseConfig(a.cfg.Database.URL)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("parse database url: %w", err))
	}
	poolConfig.MaxConns = int32(a.cfg.Database.MaxConns)
	poolConfig.MinConns = int32(a.cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = a.cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = a.cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect to database: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping database: %w", err))
	}

	if u, err := url.Parse(a.cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
