// Package api exposes the registration webhook and monitoring endpoints.
// It is a thin CRUD layer over the user store; all booking logic lives in
// the scheduler and bot packages.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/visabot-io/visabot/internal/config"
	"github.com/visabot-io/visabot/internal/models"
	"github.com/visabot-io/visabot/internal/scheduler"
)

// Store is the persistence the HTTP layer needs.
type Store interface {
	CreateUser(user *models.User) error
	UpdateStatus(id string, status models.Status) error
	DeleteUser(id string) error
}

// API wires the router to the store and the active-task registry.
type API struct {
	cfg      *config.Config
	store    Store
	registry *scheduler.Registry
	Router   *chi.Mux
	log      *zap.SugaredLogger

	server *http.Server
}

// New builds the router and wires the endpoint handlers.
func New(cfg *config.Config, store Store, registry *scheduler.Registry, log *zap.SugaredLogger) *API {
	a := &API{
		cfg:      cfg,
		store:    store,
		registry: registry,
		Router:   chi.NewRouter(),
		log:      log,
	}
	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	r := a.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if a.cfg.HTTPDebug {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.Post("/receive-data", a.ReceiveDataHandler)
	r.Post("/update-status", a.UpdateStatusHandler)
	r.Delete("/delete-user", a.DeleteUserHandler)
	r.Get("/active-tasks", a.ActiveTasksHandler)
	r.Get("/health", a.HealthHandler)
}

// Serve blocks until the server stops.
func (a *API) Serve() error {
	addr := fmt.Sprintf("%s:%d", a.cfg.HTTPHost, a.cfg.HTTPPort)
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	a.log.Infow("http server listening", "addr", addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
