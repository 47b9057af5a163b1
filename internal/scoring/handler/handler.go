package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"leadengine_backend/internal/scoring/insights"
	"leadengine_backend/internal/scoring/service"
	"leadengine_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest = "invalid request"
	defaultTopLimit   = 10
	maxListLimit      = 500
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/lead/:id", h.GetLeadScore)
	rg.GET("/leads", h.ListScores)
	rg.GET("/hot", h.TopHot)
	rg.GET("/at-risk", h.TopAtRisk)
	rg.GET("/insights", h.Insights)
	rg.POST("/refresh", h.Refresh)
}

func (h *Handler) GetLeadScore(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	score, err := h.svc.GetLeadScore(c.Request.Context(), orgID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, score)
}

func (h *Handler) ListScores(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	httpkit.OK(c, h.svc.ListScores(orgID, filter))
}

func (h *Handler) TopHot(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	limit, err := parseLimit(c.Query("limit"), defaultTopLimit)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, gin.H{"leads": h.svc.TopHot(orgID, limit)})
}

func (h *Handler) TopAtRisk(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	limit, err := parseLimit(c.Query("limit"), defaultTopLimit)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, gin.H{"leads": h.svc.TopAtRisk(orgID, limit)})
}

func (h *Handler) Insights(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	httpkit.OK(c, h.svc.Insights(orgID))
}

func (h *Handler) Refresh(c *gin.Context) {
	orgID, ok := httpkit.OrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization", nil)
		return
	}
	if err := h.svc.RequestRefresh(c.Request.Context(), orgID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, gin.H{"status": "refresh scheduled"})
}

// parseListFilter rejects malformed filters outright; only absent parameters
// fall back to defaults.
func parseListFilter(c *gin.Context) (insights.ListFilter, error) {
	limit, err := parseLimit(c.Query("limit"), maxListLimit)
	if err != nil {
		return insights.ListFilter{}, err
	}

	filter := insights.ListFilter{
		Status: c.Query("status"),
		Limit:  limit,
	}

	switch sort := c.Query("sort"); sort {
	case "", "score_desc", "score_asc", "newest":
		filter.Sort = sort
	default:
		return insights.ListFilter{}, fmt.Errorf("sort must be one of score_desc, score_asc, newest")
	}

	if filter.MinScore, err = parseScoreParam("min_score", c.Query("min_score")); err != nil {
		return insights.ListFilter{}, err
	}
	if filter.MaxScore, err = parseScoreParam("max_score", c.Query("max_score")); err != nil {
		return insights.ListFilter{}, err
	}
	if filter.MinScore != nil && filter.MaxScore != nil && *filter.MinScore > *filter.MaxScore {
		return insights.ListFilter{}, fmt.Errorf("min_score must not exceed max_score")
	}
	return filter, nil
}

func parseLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be positive")
	}
	if limit > maxListLimit {
		return maxListLimit, nil
	}
	return limit, nil
}

func parseScoreParam(name, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("%s must be between 0 and 100", name)
	}
	return &value, nil
}
