// Package assignment provides the work-distribution bounded context module.
// It plans and commits lead-to-salesperson assignments under interchangeable
// strategies, with a read-only preview path and an at-most-once commit path.
package assignment

import (
	"leadengine_backend/internal/assignment/executor"
	"leadengine_backend/internal/assignment/handler"
	"leadengine_backend/internal/assignment/repository"
	"leadengine_backend/internal/assignment/service"
	"leadengine_backend/internal/events"
	apphttp "leadengine_backend/internal/http"
	"leadengine_backend/platform/config"
	"leadengine_backend/platform/logger"
	"leadengine_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignment bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the assignment module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	exec := executor.New(repo, log, cfg.GetAssignBatchCap())
	svc := service.New(repo, exec, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// Service exposes the assignment service for background workers.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the automation endpoints on the authenticated group.
func (m *Module) RegisterRoutes(rctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(rctx.Protected.Group("/automation"))
}
