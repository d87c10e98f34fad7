package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pkordes/markerwatch/internal/config"
	"github.com/pkordes/markerwatch/internal/markersync"
	"github.com/pkordes/markerwatch/internal/remote"
	"github.com/pkordes/markerwatch/internal/snapshot"
	"github.com/pkordes/markerwatch/internal/store"
)

// app holds everything a subcommand needs. It is built in the root
// command's PersistentPreRunE and torn down in PersistentPostRunE.
type app struct {
	cfg    config.ClientConfig
	log    *slog.Logger
	out    io.Writer
	store  *store.Store
	client *remote.Client
	sync   *markersync.Service
	snap   *snapshot.Store
}

// flags overriding the MARKERS_* environment.
type rootFlags struct {
	apiURL    string
	cachePath string
	verbose   bool
	asJSON    bool
}

func (a *app) open(ctx context.Context, cmd *cobra.Command, f *rootFlags) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api") {
		cfg.APIURL = f.apiURL
	}
	if cmd.Flags().Changed("cache") {
		cfg.CachePath = f.cachePath
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a.client, err = remote.NewClient(cfg.APIURL)
	if err != nil {
		return err
	}
	a.store = store.New()

	opts := []markersync.Option{
		markersync.WithLogger(a.log),
		markersync.WithFetchTimeout(cfg.FetchTimeout),
	}
	if cfg.CachePath != "" {
		a.snap, err = snapshot.Open(cfg.CachePath)
		if err != nil {
			return err
		}
		if err := a.snap.InitSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, markersync.WithSnapshotter(a.snap))
	}
	a.sync = markersync.New(a.store, a.client, opts...)

	n, err := a.sync.Restore(ctx)
	if err != nil {
		a.log.Warn("snapshot restore failed", "error", err)
	} else if n > 0 {
		a.log.Debug("snapshot restored", "markers", n)
	}
	return nil
}

func (a *app) close() error {
	if a.sync != nil {
		a.sync.Close()
	}
	if a.snap != nil {
		if err := a.snap.Close(); err != nil {
			return fmt.Errorf("close snapshot: %w", err)
		}
	}
	return nil
}
