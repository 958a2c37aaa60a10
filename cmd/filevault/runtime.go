package main

import (
	"fmt"
	"log/slog"

	"filevault/internal/backend"
	"filevault/internal/config"
	"filevault/internal/imageproc"
	"filevault/internal/objects"
	"filevault/internal/store"
)

// runtime is the wired object service stack over one database.
type runtime struct {
	store    *store.Store
	backends *backend.Registry
	service  *objects.Service
	sweeper  *objects.Sweeper
}

func openRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	backends, err := backend.NewRegistry(*cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("backends: %w", err)
	}

	imageOpts, err := imageproc.OptionsFromConfig(*cfg)
	if err != nil {
		backends.Close()
		st.Close()
		return nil, fmt.Errorf("images: %w", err)
	}
	images := imageproc.NewProcessor(imageOpts, logger)

	service := objects.NewService(st, backends, images, objects.OptionsFromConfig(*cfg), logger)
	sweeper := objects.NewSweeper(service, objects.SweepOptionsFromConfig(*cfg), logger)
	return &runtime{store: st, backends: backends, service: service, sweeper: sweeper}, nil
}

func (rt *runtime) Close() {
	if err := rt.backends.Close(); err != nil {
		slog.Default().Warn("close backends", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		slog.Default().Warn("close store", "error", err)
	}
}
