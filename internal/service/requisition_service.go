package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"reqtrack/internal/model"
	"reqtrack/internal/permission"
	"reqtrack/internal/repository"
)

// --- DTOs ---

type ItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// RequisitionInput is the strongly-typed update payload. Privileged-only
// fields are stripped (not rejected) when a requester submits them.
type RequisitionInput struct {
	Title                 string           `json:"title"`
	Justification         string           `json:"justification"`
	Urgency               string           `json:"urgency"`
	RequestedDeliveryDate string           `json:"requested_delivery_date"` // YYYY-MM-DD
	ExpectedDeliveryDate  string           `json:"expected_delivery_date"`  // privileged only
	SupplierID            *uuid.UUID       `json:"supplier_id"`
	ManualSupplier        string           `json:"manual_supplier"`
	Links                 string           `json:"links"`
	Status                string           `json:"status"`
	BudgetCode            string           `json:"budget_code"`      // privileged only
	PONumber              string           `json:"po_number"`        // privileged only
	EnvelopeNumber        string           `json:"envelope_number"`  // privileged only
	RigAllocation         string           `json:"rig_allocation"`
	NetCost               *decimal.Decimal `json:"net_cost"`   // privileged only
	VATRate               *decimal.Decimal `json:"vat_rate"`   // privileged only
	VATAmount             *decimal.Decimal `json:"vat_amount"` // privileged only
	GrossCost             *decimal.Decimal `json:"gross_cost"` // privileged only
	Items                 []ItemInput      `json:"items"`
}

type RejectInput struct {
	Reason string `json:"reason"`
}

type ApproveInput struct {
	Comments string `json:"comments"`
}

type ChangeStatusInput struct {
	NewStatus string `json:"new_status"`
}

// ListFilter narrows the requisition listing
type ListFilter struct {
	Status string
	Search string
	Offset int
	Limit  int
}

type AttachmentResponse struct {
	ID             string `json:"id"`
	Filename       string `json:"filename"`
	OriginalName   string `json:"original_name"`
	MimeType       string `json:"mime_type"`
	Size           int64  `json:"size"`
	UploadedByName string `json:"uploaded_by_name"`
	UploadedAt     string `json:"uploaded_at"`
}

type RequisitionResponse struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	Justification         string               `json:"justification"`
	Urgency               string               `json:"urgency"`
	RequestedDeliveryDate string               `json:"requested_delivery_date,omitempty"`
	ExpectedDeliveryDate  string               `json:"expected_delivery_date,omitempty"`
	SupplierID            *string              `json:"supplier_id"`
	ManualSupplier        string               `json:"manual_supplier"`
	DisplaySupplier       string               `json:"display_supplier"`
	Links                 string               `json:"links"`
	Status                string               `json:"status"`
	BudgetCode            string               `json:"budget_code"`
	PONumber              string               `json:"po_number"`
	EnvelopeNumber        string               `json:"envelope_number"`
	RigAllocation         string               `json:"rig_allocation"`
	NetCost               *decimal.Decimal     `json:"net_cost"`
	VATRate               *decimal.Decimal     `json:"vat_rate"`
	VATAmount             *decimal.Decimal     `json:"vat_amount"`
	GrossCost             *decimal.Decimal     `json:"gross_cost"`
	TotalCost             decimal.Decimal      `json:"total_cost"`
	RequesterID           string               `json:"requester_id"`
	RequesterName         string               `json:"requester_name"`
	Items                 []model.Item         `json:"items"`
	Attachments           []AttachmentResponse `json:"attachments,omitempty"`
	ApprovalHistory       []model.ApprovalNote `json:"approval_history"`
	FinalApprovedAt       *string              `json:"final_approved_at"`
	CanEdit               bool                 `json:"can_edit"`
	CreatedAt             string               `json:"created_at"`
	UpdatedAt             string               `json:"updated_at"`
}

// ApproveResult reports whether the approval advanced the lifecycle.
// Approval by anyone other than the designated final approver appends a
// ledger note but leaves the requisition pending.
type ApproveResult struct {
	Advanced bool   `json:"advanced"`
	Message  string `json:"message"`
}

// EventBroadcaster pushes lifecycle events to connected clients.
type EventBroadcaster interface {
	BroadcastEvent(event string, payload interface{})
}

// --- Interface ---

// RequisitionService is the requisition lifecycle state machine. It is the
// sole mutator of requisition, item and ledger records, and consults the
// permission evaluator before every write.
type RequisitionService interface {
	Create(ctx context.Context, actor permission.Actor, input RequisitionInput) (*RequisitionResponse, error)
	Update(ctx context.Context, actor permission.Actor, id uuid.UUID, input RequisitionInput) (*RequisitionResponse, error)
	Delete(ctx context.Context, actor permission.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor permission.Actor, id uuid.UUID) (*RequisitionResponse, error)
	List(ctx context.Context, actor permission.Actor, filter ListFilter) ([]RequisitionResponse, int64, error)
	Approve(ctx context.Context, actor permission.Actor, id uuid.UUID, comments string) (*ApproveResult, error)
	Reject(ctx context.Context, actor permission.Actor, id uuid.UUID, reason string) error
	ChangeStatus(ctx context.Context, actor permission.Actor, id uuid.UUID, newStatus string) error
}

type requisitionService struct {
	repo          repository.RequisitionRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	finalApprover string // username whose approval is necessary and sufficient for pending -> approved
	hub           EventBroadcaster
}

// NewRequisitionService wires the lifecycle service. finalApprover is the
// designated final approver username; hub may be nil.
func NewRequisitionService(
	repo repository.RequisitionRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	finalApprover string,
	hub EventBroadcaster,
) RequisitionService {
	return &requisitionService{
		repo:          repo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		finalApprover: finalApprover,
		hub:           hub,
	}
}

// --- Validation ---

const dateLayout = "2006-01-02"

func validateInput(input RequisitionInput) error {
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, item := range input.Items {
		if item.Description == "" {
			return fmt.Errorf("%w: item %d is missing a description", ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has a non-positive quantity", ErrValidation, i+1)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d has a negative unit price", ErrValidation, i+1)
		}
	}
	if input.Urgency != "" && !model.ValidUrgency(input.Urgency) {
		return fmt.Errorf("%w: unknown urgency %q", ErrValidation, input.Urgency)
	}
	if input.Status != "" && !model.ValidStatus(input.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, input.Status)
	}
	return nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, value)
	}
	return &parsed, nil
}

func toNullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

// --- Implementation ---

func (s *requisitionService) Create(ctx context.Context, actor permission.Actor, input RequisitionInput) (*RequisitionResponse, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	requestedDate, err := parseDate(input.RequestedDeliveryDate)
	if err != nil {
		return nil, err
	}

	urgency := input.Urgency
	if urgency == "" {
		urgency = model.UrgencyMedium
	}

	// Requesters may only create in draft or pending; anything else
	// collapses back to draft.
	status := input.Status
	if status == "" {
		status = model.StatusDraft
	}
	if !actor.Privileged() && !model.EditableByOwner(status) {
		status = model.StatusDraft
	}

	req := model.Requisition{
		Title:                 input.Title,
		Justification:         input.Justification,
		Urgency:               urgency,
		RequestedDeliveryDate: requestedDate,
		SupplierID:            input.SupplierID,
		ManualSupplier:        input.ManualSupplier,
		Links:                 input.Links,
		Status:                status,
		RigAllocation:         input.RigAllocation,
		RequesterID:           actor.ID,
	}

	// Administrative and financial fields are stripped from requester input.
	if permission.CanSetAdminFields(actor) {
		expectedDate, dateErr := parseDate(input.ExpectedDeliveryDate)
		if dateErr != nil {
			return nil, dateErr
		}
		req.ExpectedDeliveryDate = expectedDate
		req.BudgetCode = input.BudgetCode
		req.PONumber = input.PONumber
		req.EnvelopeNumber = input.EnvelopeNumber
		req.NetCost = toNullDecimal(input.NetCost)
		req.VATRate = toNullDecimal(input.VATRate)
		req.VATAmount = toNullDecimal(input.VATAmount)
		req.GrossCost = toNullDecimal(input.GrossCost)
	}

	for _, item := range input.Items {
		req.Items = append(req.Items, model.Item{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, &req); createErr != nil {
			return fmt.Errorf("failed to create requisition: %w", createErr)
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateRequisition, &req, map[string]interface{}{
			"status": req.Status,
			"items":  len(req.Items),
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("requisition.created", &req)

	return s.reload(ctx, actor, req.ID)
}

func (s *requisitionService) Update(ctx context.Context, actor permission.Actor, id uuid.UUID, input RequisitionInput) (*RequisitionResponse, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var updated *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, loadErr := s.loadRequisition(txCtx, id)
		if loadErr != nil {
			return loadErr
		}

		if !permission.CanEdit(actor, req.RequesterID, req.Status) {
			return fmt.Errorf("%w: requesters cannot edit requisitions after approval", ErrPermissionDenied)
		}

		requestedDate, dateErr := parseDate(input.RequestedDeliveryDate)
		if dateErr != nil {
			return dateErr
		}

		req.Title = input.Title
		req.Justification = input.Justification
		if input.Urgency != "" {
			req.Urgency = input.Urgency
		}
		req.RequestedDeliveryDate = requestedDate
		req.SupplierID = input.SupplierID
		req.ManualSupplier = input.ManualSupplier
		req.Links = input.Links
		req.RigAllocation = input.RigAllocation

		// A privileged editor may move status anywhere; a requester-owner
		// is pinned to draft/pending and other submitted values are ignored.
		if input.Status != "" && input.Status != req.Status {
			if actor.Privileged() || model.EditableByOwner(input.Status) {
				req.Status = input.Status
			}
		}

		// Financial/admin fields: privileged input wins, requester input
		// is dropped and the stored values retained.
		if permission.CanSetAdminFields(actor) {
			expectedDate, expErr := parseDate(input.ExpectedDeliveryDate)
			if expErr != nil {
				return expErr
			}
			req.ExpectedDeliveryDate = expectedDate
			req.BudgetCode = input.BudgetCode
			req.PONumber = input.PONumber
			req.EnvelopeNumber = input.EnvelopeNumber
			req.NetCost = toNullDecimal(input.NetCost)
			req.VATRate = toNullDecimal(input.VATRate)
			req.VATAmount = toNullDecimal(input.VATAmount)
			req.GrossCost = toNullDecimal(input.GrossCost)
		}

		if saveErr := s.repo.Update(txCtx, req); saveErr != nil {
			return fmt.Errorf("failed to update requisition: %w", saveErr)
		}

		items := make([]model.Item, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, model.Item{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}
		if replaceErr := s.repo.ReplaceItems(txCtx, req.ID, items); replaceErr != nil {
			return fmt.Errorf("failed to replace items: %w", replaceErr)
		}

		updated = req
		return s.writeAudit(txCtx, actor, model.ActionUpdateRequisition, req, map[string]interface{}{
			"status": req.Status,
			"items":  len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("requisition.updated", updated)

	return s.reload(ctx, actor, id)
}

func (s *requisitionService) Delete(ctx context.Context, actor permission.Actor, id uuid.UUID) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, loadErr := s.loadRequisition(txCtx, id)
		if loadErr != nil {
			return loadErr
		}

		if !permission.CanDelete(actor, req.RequesterID, req.Status) {
			return fmt.Errorf("%w: requesters cannot delete requisitions after approval", ErrPermissionDenied)
		}

		if delErr := s.repo.Delete(txCtx, id); delErr != nil {
			return fmt.Errorf("failed to delete requisition: %w", delErr)
		}

		return s.writeAudit(txCtx, actor, model.ActionDeleteRequisition, req, map[string]interface{}{
			"status": req.Status,
		})
	})
	if err != nil {
		return err
	}

	s.broadcast("requisition.deleted", &model.Requisition{ID: id})
	return nil
}

func (s *requisitionService) Get(ctx context.Context, actor permission.Actor, id uuid.UUID) (*RequisitionResponse, error) {
	req, err := s.loadRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanView(actor, req.RequesterID, req.Status) {
		return nil, fmt.Errorf("%w: requisition belongs to another requester", ErrPermissionDenied)
	}
	return toRequisitionResponse(req, actor), nil
}

func (s *requisitionService) List(ctx context.Context, actor permission.Actor, filter ListFilter) ([]RequisitionResponse, int64, error) {
	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}

	repoFilter := repository.RequisitionFilter{
		Status: filter.Status,
		Search: filter.Search,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}
	// Requesters only ever see their own requisitions.
	if !actor.Privileged() {
		requesterID := actor.ID
		repoFilter.RequesterID = &requesterID
	}

	reqs, total, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requisitions: %w", err)
	}

	responses := make([]RequisitionResponse, 0, len(reqs))
	for i := range reqs {
		responses = append(responses, *toRequisitionResponse(&reqs[i], actor))
	}
	return responses, total, nil
}

func (s *requisitionService) Approve(ctx context.Context, actor permission.Actor, id uuid.UUID, comments string) (*ApproveResult, error) {
	if !actor.Privileged() {
		return nil, fmt.Errorf("%w: only admins and approvers can approve requisitions", ErrPermissionDenied)
	}

	var result ApproveResult
	var approved *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, loadErr := s.loadRequisition(txCtx, id)
		if loadErr != nil {
			return loadErr
		}

		if req.Status != model.StatusPending {
			return fmt.Errorf("%w: only pending requisitions can be approved", ErrInvalidState)
		}

		now := time.Now().UTC()
		req.ApprovalNotes = model.AppendApprovalNote(req.ApprovalNotes, model.ApprovalNote{
			UserID:    actor.ID.String(),
			Username:  actor.Username,
			Action:    model.ApprovalActionApproved,
			Timestamp: now,
			Comments:  comments,
		})

		readable := now.Format("02/01/2006 15:04:05")
		action := model.ActionApproveNote
		if actor.Username == s.finalApprover {
			// The designated final approver closes the loop: status
			// advances and the final-approval timestamp is set once.
			req.Status = model.StatusApproved
			req.FinalApprovedAt = &now
			action = model.ActionFinalApprove
			result = ApproveResult{
				Advanced: true,
				Message:  fmt.Sprintf("%s has fully approved at %s. Requisition moved to approved.", actor.Username, readable),
			}
		} else {
			result = ApproveResult{
				Advanced: false,
				Message:  fmt.Sprintf("%s approved at %s. Requisition remains pending until %s approves.", actor.Username, readable, s.finalApprover),
			}
		}

		if saveErr := s.repo.Update(txCtx, req); saveErr != nil {
			return fmt.Errorf("failed to record approval: %w", saveErr)
		}

		approved = req
		return s.writeAudit(txCtx, actor, action, req, map[string]interface{}{
			"comments": comments,
			"advanced": result.Advanced,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Advanced {
		s.broadcast("requisition.approved", approved)
	} else {
		s.broadcast("requisition.approval_note", approved)
	}
	return &result, nil
}

func (s *requisitionService) Reject(ctx context.Context, actor permission.Actor, id uuid.UUID, reason string) error {
	if !actor.Privileged() {
		return fmt.Errorf("%w: only admins and approvers can reject requisitions", ErrPermissionDenied)
	}

	if reason == "" {
		reason = model.DefaultRejectionReason
	}

	var rejected *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, loadErr := s.loadRequisition(txCtx, id)
		if loadErr != nil {
			return loadErr
		}

		// Rejection is allowed from any status and always routes back
		// to draft, discarding progress toward approval.
		req.ApprovalNotes = model.AppendApprovalNote(req.ApprovalNotes, model.ApprovalNote{
			UserID:    actor.ID.String(),
			Username:  actor.Username,
			Action:    model.ApprovalActionRejected,
			Timestamp: time.Now().UTC(),
			Reason:    reason,
		})
		req.Status = model.StatusDraft

		if saveErr := s.repo.Update(txCtx, req); saveErr != nil {
			return fmt.Errorf("failed to record rejection: %w", saveErr)
		}

		rejected = req
		return s.writeAudit(txCtx, actor, model.ActionRejectRequisition, req, map[string]interface{}{
			"reason": reason,
		})
	})
	if err != nil {
		return err
	}

	s.broadcast("requisition.rejected", rejected)
	return nil
}

func (s *requisitionService) ChangeStatus(ctx context.Context, actor permission.Actor, id uuid.UUID, newStatus string) error {
	if !actor.Privileged() {
		return fmt.Errorf("%w: only admins and approvers can change status directly", ErrPermissionDenied)
	}
	if !model.ValidStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidState, newStatus)
	}

	var changed *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, loadErr := s.loadRequisition(txCtx, id)
		if loadErr != nil {
			return loadErr
		}

		// Deliberately loose override channel: any of the five statuses
		// may jump to any other, no adjacency check.
		previous := req.Status
		req.Status = newStatus

		if saveErr := s.repo.Update(txCtx, req); saveErr != nil {
			return fmt.Errorf("failed to change status: %w", saveErr)
		}

		changed = req
		return s.writeAudit(txCtx, actor, model.ActionChangeStatus, req, map[string]interface{}{
			"from": previous,
			"to":   newStatus,
		})
	})
	if err != nil {
		return err
	}

	s.broadcast("requisition.status_changed", changed)
	return nil
}

// --- Helpers ---

func (s *requisitionService) loadRequisition(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: requisition %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load requisition: %w", err)
	}
	return req, nil
}

func (s *requisitionService) reload(ctx context.Context, actor permission.Actor, id uuid.UUID) (*RequisitionResponse, error) {
	req, err := s.loadRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRequisitionResponse(req, actor), nil
}

func (s *requisitionService) writeAudit(ctx context.Context, actor permission.Actor, action string, req *model.Requisition, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	userID := actor.ID
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   req.ID.String(),
		EntityName: req.Title,
		Details:    string(payload),
	}
	if err := s.auditRepo.Create(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *requisitionService) broadcast(event string, req *model.Requisition) {
	if s.hub == nil || req == nil {
		return
	}
	s.hub.BroadcastEvent(event, map[string]interface{}{
		"id":     req.ID.String(),
		"status": req.Status,
		"title":  req.Title,
	})
}

func toRequisitionResponse(req *model.Requisition, actor permission.Actor) *RequisitionResponse {
	resp := &RequisitionResponse{
		ID:              req.ID.String(),
		Title:           req.Title,
		Justification:   req.Justification,
		Urgency:         req.Urgency,
		ManualSupplier:  req.ManualSupplier,
		DisplaySupplier: req.DisplaySupplier(),
		Links:           req.Links,
		Status:          req.Status,
		BudgetCode:      req.BudgetCode,
		PONumber:        req.PONumber,
		EnvelopeNumber:  req.EnvelopeNumber,
		RigAllocation:   req.RigAllocation,
		TotalCost:       req.TotalCost(),
		RequesterID:     req.RequesterID.String(),
		Items:           req.Items,
		ApprovalHistory: req.ApprovalHistory(),
		CanEdit:         permission.CanEdit(actor, req.RequesterID, req.Status),
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       req.UpdatedAt.Format(time.RFC3339),
	}

	if req.RequestedDeliveryDate != nil {
		resp.RequestedDeliveryDate = req.RequestedDeliveryDate.Format(dateLayout)
	}
	if req.ExpectedDeliveryDate != nil {
		resp.ExpectedDeliveryDate = req.ExpectedDeliveryDate.Format(dateLayout)
	}
	if req.SupplierID != nil {
		id := req.SupplierID.String()
		resp.SupplierID = &id
	}
	if req.Requester != nil {
		resp.RequesterName = req.Requester.Username
	}
	if req.NetCost.Valid {
		resp.NetCost = &req.NetCost.Decimal
	}
	if req.VATRate.Valid {
		resp.VATRate = &req.VATRate.Decimal
	}
	if req.VATAmount.Valid {
		resp.VATAmount = &req.VATAmount.Decimal
	}
	if req.GrossCost.Valid {
		resp.GrossCost = &req.GrossCost.Decimal
	}
	if req.FinalApprovedAt != nil {
		ts := req.FinalApprovedAt.Format(time.RFC3339)
		resp.FinalApprovedAt = &ts
	}

	for _, a := range req.Attachments {
		ar := AttachmentResponse{
			ID:           a.ID.String(),
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
			UploadedAt:   a.UploadedAt.Format(time.RFC3339),
		}
		if a.Uploader != nil {
			ar.UploadedByName = a.Uploader.Username
		}
		resp.Attachments = append(resp.Attachments, ar)
	}

	return resp
}
