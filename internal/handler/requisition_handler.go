package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reqtrack/internal/middleware"
	"reqtrack/internal/model"
	"reqtrack/internal/service"
	"reqtrack/pkg/pagination"
	"reqtrack/pkg/response"
)

type RequisitionHandler struct {
	requisitionService service.RequisitionService
}

func NewRequisitionHandler(requisitionService service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{requisitionService: requisitionService}
}

// RegisterRoutes binds the requisition endpoints to the gin RouterGroup
func (h *RequisitionHandler) RegisterRoutes(router *gin.RouterGroup) {
	reqs := router.Group("/api/requisitions")
	{
		reqs.GET("", middleware.RequireAuth(), h.List)
		reqs.POST("", middleware.RequireAuth(), h.Create)
		reqs.GET("/:id", middleware.RequireAuth(), h.Get)
		reqs.PUT("/:id", middleware.RequireAuth(), h.Update)
		reqs.DELETE("/:id", middleware.RequireAuth(), h.Delete)
		reqs.PUT("/:id/approve", middleware.RequireRole(model.RoleAdmin, model.RoleApprover), h.Approve)
		reqs.PUT("/:id/reject", middleware.RequireRole(model.RoleAdmin, model.RoleApprover), h.Reject)
		reqs.PUT("/:id/change-status", middleware.RequireRole(model.RoleAdmin, model.RoleApprover), h.ChangeStatus)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid requisition id"))
		return uuid.Nil, false
	}
	return id, true
}

// List returns requisitions visible to the actor, optionally filtered
// @Summary      List requisitions
// @Description  Lists requisitions with optional status filter and free-text search. Requesters only see their own.
// @Tags         requisitions
// @Produce      json
// @Security     BearerAuth
// @Param        status  query  string  false  "Filter by lifecycle status"
// @Param        search  query  string  false  "Free-text search"
// @Success      200  {object}  response.Response
// @Router       /api/requisitions [get]
func (h *RequisitionHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.ListFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Offset: params.Offset,
		Limit:  params.Limit,
	}

	reqs, total, err := h.requisitionService.List(c.Request.Context(), middleware.ActorFromContext(c), filter)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   reqs,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}

// Create creates a new requisition owned by the actor
// @Summary      Create requisition
// @Tags         requisitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RequisitionInput  true  "Requisition"
// @Success      201      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/requisitions [post]
func (h *RequisitionHandler) Create(c *gin.Context) {
	var input service.RequisitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	req, err := h.requisitionService.Create(c.Request.Context(), middleware.ActorFromContext(c), input)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, req))
}

// Get returns one requisition with items, attachments, approval history
// and the actor's edit affordance
func (h *RequisitionHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	req, err := h.requisitionService.Get(c.Request.Context(), middleware.ActorFromContext(c), id)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// Update rewrites a requisition and wholesale-replaces its items
func (h *RequisitionHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.RequisitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	req, err := h.requisitionService.Update(c.Request.Context(), middleware.ActorFromContext(c), id, input)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// Delete removes a requisition together with its items and attachments
func (h *RequisitionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.requisitionService.Delete(c.Request.Context(), middleware.ActorFromContext(c), id); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Deleted successfully", nil))
}

// Approve records an approval note; the designated final approver's
// approval advances the requisition to approved
// @Summary      Approve requisition
// @Description  Appends an approval note. Only the designated final approver advances the status.
// @Tags         requisitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true   "Requisition ID"
// @Param        payload  body      service.ApproveInput   false  "Optional comments"
// @Success      200      {object}  response.Response{data=service.ApproveResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requisitions/{id}/approve [put]
func (h *RequisitionHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.ApproveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		// Empty body is fine — comments are optional
		input.Comments = ""
	}

	result, err := h.requisitionService.Approve(c.Request.Context(), middleware.ActorFromContext(c), id, input.Comments)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, result.Message, result))
}

// Reject appends a rejection note and routes the requisition back to draft
func (h *RequisitionHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.RejectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		input.Reason = ""
	}

	if err := h.requisitionService.Reject(c.Request.Context(), middleware.ActorFromContext(c), id, input.Reason); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Rejected and moved to draft", nil))
}

// ChangeStatus is the privileged override channel between the five statuses
func (h *RequisitionHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.ChangeStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	if err := h.requisitionService.ChangeStatus(c.Request.Context(), middleware.ActorFromContext(c), id, input.NewStatus); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Status changed to "+input.NewStatus, nil))
}
