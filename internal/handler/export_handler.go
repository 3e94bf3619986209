package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reqtrack/internal/middleware"
	"reqtrack/internal/service"
	"reqtrack/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	exportService service.ExportService
}

func NewExportHandler(exportService service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// RegisterRoutes binds the export endpoints to the gin RouterGroup
func (h *ExportHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/export/requisitions", middleware.RequireAuth(), h.ExportRequisitions)
}

// ExportRequisitions streams an xlsx workbook of all requisitions
func (h *ExportHandler) ExportRequisitions(c *gin.Context) {
	buf, filename, err := h.exportService.RequisitionsWorkbook(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
