package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reqtrack/internal/middleware"
	"reqtrack/internal/service"
	"reqtrack/pkg/response"
)

// maxUploadFiles caps a single upload request
const maxUploadFiles = 5

type AttachmentHandler struct {
	attachmentService service.AttachmentService
}

func NewAttachmentHandler(attachmentService service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// RegisterRoutes binds the attachment endpoints to the gin RouterGroup
func (h *AttachmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/api/requisitions/:id/upload", middleware.RequireAuth(), h.Upload)
	router.DELETE("/api/attachments/:id", middleware.RequireAuth(), h.Delete)
}

// Upload stores one or more files against a requisition. Gated by the
// same permission as editing the requisition.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	requisitionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid requisition id"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid multipart form: "+err.Error()))
		return
	}

	files := form.File["files"]
	if len(files) > maxUploadFiles {
		files = files[:maxUploadFiles]
	}

	uploaded, err := h.attachmentService.Upload(c.Request.Context(), middleware.ActorFromContext(c), requisitionID, files)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK,
		"File(s) uploaded successfully", uploaded))
}

// Delete removes an attachment row and its file on disk
func (h *AttachmentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid attachment id"))
		return
	}

	if err := h.attachmentService.Delete(c.Request.Context(), middleware.ActorFromContext(c), id); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Attachment deleted successfully", nil))
}
