// Package scoring provides the lead scoring bounded context module.
// It computes weighted sub-scores for every active lead, maintains the
// per-organization snapshot, and exposes the score API.
package scoring

import (
	"context"

	"leadengine_backend/internal/events"
	apphttp "leadengine_backend/internal/http"
	"leadengine_backend/internal/scoring/engine"
	"leadengine_backend/internal/scoring/handler"
	"leadengine_backend/internal/scoring/insights"
	"leadengine_backend/internal/scoring/repository"
	"leadengine_backend/internal/scoring/service"
	"leadengine_backend/platform/config"
	"leadengine_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the scoring bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the scoring module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	store := insights.NewStore()
	svc := service.New(repo, engine.New(cfg), store, eventBus, log, cfg)

	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scoring"
}

// Service exposes the scoring service for background workers and sibling
// modules that react to score data.
func (m *Module) Service() *service.Service {
	return m.service
}

// WarmStart restores persisted scores into the in-memory snapshot store.
func (m *Module) WarmStart(ctx context.Context) error {
	return m.service.WarmStart(ctx)
}

// RegisterRoutes mounts the scoring endpoints on the authenticated group.
func (m *Module) RegisterRoutes(rctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(rctx.Protected.Group("/scoring"))
}
