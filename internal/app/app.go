// Package app wires configuration into the status-sync stack shared by the
// presence binaries: the REST client, the environment prober, the metadata
// cache and the sync client itself.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"presence/internal/appversion"
	"presence/internal/config"
	"presence/pkg/api"
	"presence/pkg/metacache"
	"presence/pkg/probe"
	"presence/pkg/projector"
	"presence/pkg/protocol"
	"presence/pkg/statusync"
)

// App holds the long-lived collaborators for one server.
type App struct {
	Config *config.Config
	Paths  *config.Paths
	API    *api.Client
	Prober *probe.Prober
	Logger *slog.Logger

	cache *metacache.Store // nil when the cache could not be opened
}

// New builds an App. A metadata cache that cannot be opened is logged and
// skipped; it only matters when the server is unreachable at startup.
func New(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := api.New(api.Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.RequestTimeout.D(),
		Version:   appversion.String(),
		ClientID:  cfg.ClientID,
		ProbePath: cfg.ProbePath,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		API:    client,
		Prober: probe.New(client, cfg.PlatformHeaders, logger),
		Logger: logger,
	}

	if paths != nil && paths.CacheDBPath != "" {
		store, err := metacache.Open(ctx, paths.CacheDBPath)
		if err != nil {
			logger.Warn("metadata cache disabled", "path", paths.CacheDBPath, "err", err)
		} else {
			a.cache = store
		}
	}
	return a, nil
}

// Close releases the metadata cache.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// Hooks connects a sync client to its UI.
type Hooks struct {
	OnFrame func(projector.Frame)
	OnState func(statusync.StateChange)
	Visible func() bool
	Local   *time.Location
}

// Sync returns an unstarted sync client configured from the App.
func (a *App) Sync(h Hooks) (*statusync.Client, error) {
	cfg := statusync.Config{
		Mode:               a.Config.Transport,
		Transport:          a.API.EventSource(),
		Querier:            a.API,
		Prober:             a.Prober,
		Metadata:           a.API,
		CacheKey:           a.API.BaseURL(),
		StaleThreshold:     a.Config.StaleThreshold.D(),
		StaleCheckInterval: a.Config.StaleCheckInterval.D(),
		PollInterval:       a.Config.PollInterval.D(),
		Visible:            h.Visible,
		Local:              h.Local,
		OnFrame:            h.OnFrame,
		OnState:            h.OnState,
		Logger:             a.Logger,
	}
	if a.cache != nil {
		cfg.Cache = a.cache
	}
	return statusync.New(cfg)
}

// Metadata fetches metadata once, falling back to the cache and then to
// defaults. The error reports the failed fetch even when a fallback was used.
func (a *App) Metadata(ctx context.Context) (protocol.Metadata, error) {
	meta, err := a.API.Metadata(ctx)
	if err == nil {
		if a.cache != nil {
			if serr := a.cache.Save(ctx, a.API.BaseURL(), meta); serr != nil {
				a.Logger.Warn("metadata cache save failed", "err", serr)
			}
		}
		return meta, nil
	}

	if a.cache != nil {
		cached, _, cerr := a.cache.Load(ctx, a.API.BaseURL())
		if cerr == nil {
			return cached, err
		}
		if !errors.Is(cerr, metacache.ErrNotFound) {
			a.Logger.Warn("metadata cache load failed", "err", cerr)
		}
	}
	fallback := protocol.DefaultMetadata()
	fallback.RefreshInterval = a.Config.PollInterval.D()
	return fallback, err
}

// Snapshot pulls the current status once and projects it. Metadata failures
// degrade the projection but do not fail the call; a failed query does.
func (a *App) Snapshot(ctx context.Context, local *time.Location) (projector.Frame, error) {
	meta, merr := a.Metadata(ctx)
	if merr != nil {
		a.Logger.Warn("metadata unavailable", "err", merr)
	}

	snap, err := a.API.Query(ctx)
	if err != nil {
		return nil, err
	}
	opts := projector.OptionsFrom(meta)
	opts.Local = local
	return projector.Project(snap, opts, time.Now()), nil
}
