package handler

import (
	"net/http"

	"leadengine_backend/internal/assignment/service"
	"leadengine_backend/platform/httpkit"
	"leadengine_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/strategies", h.ListStrategies)
	rg.GET("/preview", h.Preview)
	rg.POST("/assign-bulk", h.BulkAssign)
	rg.GET("/stats", h.Stats)
}

func (h *Handler) ListStrategies(c *gin.Context) {
	httpkit.OK(c, gin.H{"strategies": h.svc.Strategies()})
}

func (h *Handler) Preview(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	strategyID := c.Query("strategy")
	if strategyID == "" {
		httpkit.Error(c, http.StatusBadRequest, "strategy query parameter is required", nil)
		return
	}

	plan, err := h.svc.Preview(c.Request.Context(), orgID, strategyID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, plan)
}

// BulkAssignRequest is the commit payload. Limit 0 means the server cap.
type BulkAssignRequest struct {
	Strategy string `json:"strategy" validate:"required"`
	Limit    int    `json:"limit" validate:"gte=0"`
}

func (h *Handler) BulkAssign(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}

	var req BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.BulkAssign(c.Request.Context(), orgID, req.Strategy, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Stats(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}
