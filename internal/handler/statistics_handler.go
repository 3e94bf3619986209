package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reqtrack/internal/middleware"
	"reqtrack/internal/model"
	"reqtrack/internal/service"
	"reqtrack/pkg/response"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

// RegisterRoutes binds the statistics endpoints to the gin RouterGroup
func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/statistics/summary", middleware.RequireRole(model.RoleAdmin, model.RoleApprover), h.Summary)
}

// Summary returns requisition counts per status and spend roll-ups
func (h *StatisticsHandler) Summary(c *gin.Context) {
	summary, err := h.statisticsService.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
