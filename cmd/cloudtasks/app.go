package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sandeepkv93/cloudtasks/internal/backend/taskapi"
	"github.com/sandeepkv93/cloudtasks/internal/config"
	"github.com/sandeepkv93/cloudtasks/internal/httpapi"
	"github.com/sandeepkv93/cloudtasks/internal/identity"
	"github.com/sandeepkv93/cloudtasks/internal/logging"
	"github.com/sandeepkv93/cloudtasks/internal/session"
	"github.com/sandeepkv93/cloudtasks/internal/storage"
	"github.com/sandeepkv93/cloudtasks/internal/tasks"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *storage.SQLiteRepository
	sessions *session.Manager
	tasks    *tasks.Controller

	closers []io.Closer
}

func newApp(dir string) (*app, error) {
	cfg, err := config.Load(config.NewEnvReader(), dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	a := &app{cfg: cfg}
	logger, logCloser, err := logging.OpenFile(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a.logger = logger.With().Str("component", config.AppName).Logger()
	a.closers = append(a.closers, logCloser)

	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open state db: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	auth := identity.New(httpapi.New(cfg.AuthURL, httpClient, a.logger.With().Str("service", "identity").Logger()))
	a.sessions = session.NewManager(auth, store, cfg.SessionKey, a.logger)

	backend := taskapi.New(cfg.TasksURL, httpClient, a.logger.With().Str("service", "tasks").Logger())
	a.tasks = tasks.NewController(backend, a.sessions, tasks.Options{
		DefaultExpiry: cfg.DefaultExpiry,
		Logger:        a.logger,
	})

	a.logger.Info().
		Str("config_dir", cfg.Dir).
		Str("auth_url", cfg.AuthURL).
		Str("tasks_url", cfg.TasksURL).
		Msg("client started")
	return a, nil
}

// requireSession restores the persisted session and fails when there is none.
func (a *app) requireSession(ctx context.Context) error {
	a.sessions.Restore(ctx)
	if !a.sessions.IsAuthenticated() {
		return errNotSignedIn
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
