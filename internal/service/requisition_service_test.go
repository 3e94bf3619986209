package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reqtrack/internal/model"
	"reqtrack/internal/permission"
	"reqtrack/internal/repository"
)

// --- In-memory fakes ---

type fakeRequisitionRepo struct {
	reqs map[uuid.UUID]*model.Requisition
}

func newFakeRequisitionRepo() *fakeRequisitionRepo {
	return &fakeRequisitionRepo{reqs: make(map[uuid.UUID]*model.Requisition)}
}

func (r *fakeRequisitionRepo) Create(_ context.Context, req *model.Requisition) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	for i := range req.Items {
		if req.Items[i].ID == uuid.Nil {
			req.Items[i].ID = uuid.New()
		}
		req.Items[i].RequisitionID = req.ID
	}
	stored := *req
	r.reqs[req.ID] = &stored
	return nil
}

func (r *fakeRequisitionRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Requisition, error) {
	stored, ok := r.reqs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeRequisitionRepo) List(_ context.Context, filter repository.RequisitionFilter) ([]model.Requisition, int64, error) {
	var out []model.Requisition
	for _, req := range r.reqs {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.RequesterID != nil && req.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(req.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *req)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequisitionRepo) ListAll(_ context.Context) ([]model.Requisition, error) {
	var out []model.Requisition
	for _, req := range r.reqs {
		out = append(out, *req)
	}
	return out, nil
}

func (r *fakeRequisitionRepo) Update(_ context.Context, req *model.Requisition) error {
	stored, ok := r.reqs[req.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	items := stored.Items
	updated := *req
	updated.Items = items
	r.reqs[req.ID] = &updated
	return nil
}

func (r *fakeRequisitionRepo) ReplaceItems(_ context.Context, requisitionID uuid.UUID, items []model.Item) error {
	stored, ok := r.reqs[requisitionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].RequisitionID = requisitionID
	}
	stored.Items = items
	return nil
}

func (r *fakeRequisitionRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.reqs, id)
	return nil
}

func (r *fakeRequisitionRepo) CountBySupplier(_ context.Context, supplierID uuid.UUID) (int64, error) {
	var count int64
	for _, req := range r.reqs {
		if req.SupplierID != nil && *req.SupplierID == supplierID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRequisitionRepo) CountByRequester(_ context.Context, requesterID uuid.UUID) (int64, error) {
	var count int64
	for _, req := range r.reqs {
		if req.RequesterID == requesterID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRequisitionRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, req := range r.reqs {
		counts[req.Status]++
	}
	return counts, nil
}

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, offset, limit int) ([]model.AuditLog, int64, error) {
	return r.entries, int64(len(r.entries)), nil
}

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeBroadcaster struct {
	events []string
}

func (b *fakeBroadcaster) BroadcastEvent(event string, _ interface{}) {
	b.events = append(b.events, event)
}

// --- Fixtures ---

const testFinalApprover = "dave"

func newTestService() (*fakeRequisitionRepo, *fakeAuditRepo, *fakeBroadcaster, RequisitionService) {
	repo := newFakeRequisitionRepo()
	audit := &fakeAuditRepo{}
	hub := &fakeBroadcaster{}
	svc := NewRequisitionService(repo, audit, fakeTxManager{}, testFinalApprover, hub)
	return repo, audit, hub, svc
}

func requesterActor() permission.Actor {
	return permission.Actor{ID: uuid.New(), Username: "alice", Role: model.RoleRequester}
}

func approverActor() permission.Actor {
	return permission.Actor{ID: uuid.New(), Username: "carol", Role: model.RoleApprover}
}

func finalApproverActor() permission.Actor {
	return permission.Actor{ID: uuid.New(), Username: testFinalApprover, Role: model.RoleAdmin}
}

func cableInput() RequisitionInput {
	return RequisitionInput{
		Title:         "Cables for workshop",
		Justification: "Replacing worn leads",
		Urgency:       model.UrgencyMedium,
		Items: []ItemInput{
			{Description: "HDMI cable", Quantity: 3, UnitPrice: decimal.NewFromFloat(15.00)},
			{Description: "USB-C cable", Quantity: 2, UnitPrice: decimal.NewFromFloat(5.00)},
		},
	}
}

// --- Tests ---

func TestCreateRequisition(t *testing.T) {
	_, audit, hub, svc := newTestService()
	actor := requesterActor()

	resp, err := svc.Create(context.Background(), actor, cableInput())
	require.NoError(t, err)

	assert.Equal(t, "Cables for workshop", resp.Title)
	assert.Equal(t, model.StatusDraft, resp.Status)
	assert.Len(t, resp.Items, 2)
	assert.True(t, resp.TotalCost.Equal(decimal.NewFromFloat(55.00)))
	assert.Equal(t, actor.ID.String(), resp.RequesterID)
	assert.Empty(t, resp.ApprovalHistory)
	assert.True(t, resp.CanEdit)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, model.ActionCreateRequisition, audit.entries[0].Action)
	assert.Equal(t, []string{"requisition.created"}, hub.events)
}

func TestCreateStripsAdminFieldsFromRequester(t *testing.T) {
	_, _, _, svc := newTestService()

	input := cableInput()
	gross := decimal.NewFromFloat(120.00)
	input.BudgetCode = "BC-99"
	input.PONumber = "PO-1"
	input.GrossCost = &gross
	input.ExpectedDeliveryDate = "2026-10-01"

	resp, err := svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)

	assert.Empty(t, resp.BudgetCode)
	assert.Empty(t, resp.PONumber)
	assert.Nil(t, resp.GrossCost)
	assert.Empty(t, resp.ExpectedDeliveryDate)
	// Total falls back to the item sum when no gross cost is stored.
	assert.True(t, resp.TotalCost.Equal(decimal.NewFromFloat(55.00)))
}

func TestCreateAdminFieldsKeptForPrivileged(t *testing.T) {
	_, _, _, svc := newTestService()

	input := cableInput()
	gross := decimal.NewFromFloat(120.00)
	input.BudgetCode = "BC-99"
	input.GrossCost = &gross
	input.Status = model.StatusApproved

	resp, err := svc.Create(context.Background(), approverActor(), input)
	require.NoError(t, err)

	assert.Equal(t, "BC-99", resp.BudgetCode)
	require.NotNil(t, resp.GrossCost)
	assert.True(t, resp.GrossCost.Equal(gross))
	assert.Equal(t, model.StatusApproved, resp.Status)
	assert.True(t, resp.TotalCost.Equal(gross))
}

func TestCreateRequesterStatusCollapsesToDraft(t *testing.T) {
	_, _, _, svc := newTestService()

	input := cableInput()
	input.Status = model.StatusApproved

	resp, err := svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, resp.Status)

	input.Status = model.StatusPending
	resp, err = svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, resp.Status)
}

func TestCreateValidation(t *testing.T) {
	_, _, _, svc := newTestService()
	actor := requesterActor()

	tests := []struct {
		name   string
		mutate func(*RequisitionInput)
	}{
		{
			name:   "missing title",
			mutate: func(in *RequisitionInput) { in.Title = "" },
		},
		{
			name:   "no items",
			mutate: func(in *RequisitionInput) { in.Items = nil },
		},
		{
			name:   "zero quantity",
			mutate: func(in *RequisitionInput) { in.Items[0].Quantity = 0 },
		},
		{
			name:   "negative unit price",
			mutate: func(in *RequisitionInput) { in.Items[0].UnitPrice = decimal.NewFromFloat(-1) },
		},
		{
			name:   "item missing description",
			mutate: func(in *RequisitionInput) { in.Items[1].Description = "" },
		},
		{
			name:   "unknown urgency",
			mutate: func(in *RequisitionInput) { in.Urgency = "urgent" },
		},
		{
			name:   "unknown status",
			mutate: func(in *RequisitionInput) { in.Status = "rejected" },
		},
		{
			name:   "malformed delivery date",
			mutate: func(in *RequisitionInput) { in.RequestedDeliveryDate = "01/10/2026" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := cableInput()
			tt.mutate(&input)
			_, err := svc.Create(context.Background(), actor, input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestApproveByNonFinalApproverStaysPending(t *testing.T) {
	repo, audit, hub, svc := newTestService()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	result, err := svc.Approve(context.Background(), approverActor(), id, "looks fine")
	require.NoError(t, err)

	assert.False(t, result.Advanced)
	assert.Contains(t, result.Message, "remains pending until "+testFinalApprover)

	stored := repo.reqs[id]
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Nil(t, stored.FinalApprovedAt)

	history := stored.ApprovalHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "carol", history[0].Username)
	assert.Equal(t, model.ApprovalActionApproved, history[0].Action)
	assert.Equal(t, "looks fine", history[0].Comments)

	assert.Equal(t, model.ActionApproveNote, audit.entries[len(audit.entries)-1].Action)
	assert.Contains(t, hub.events, "requisition.approval_note")
}

func TestApproveByFinalApproverAdvances(t *testing.T) {
	repo, audit, hub, svc := newTestService()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = svc.Approve(context.Background(), approverActor(), id, "first pass")
	require.NoError(t, err)

	result, err := svc.Approve(context.Background(), finalApproverActor(), id, "")
	require.NoError(t, err)

	assert.True(t, result.Advanced)
	assert.Contains(t, result.Message, "moved to approved")

	stored := repo.reqs[id]
	assert.Equal(t, model.StatusApproved, stored.Status)
	require.NotNil(t, stored.FinalApprovedAt)

	history := stored.ApprovalHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "carol", history[0].Username)
	assert.Equal(t, testFinalApprover, history[1].Username)

	assert.Equal(t, model.ActionFinalApprove, audit.entries[len(audit.entries)-1].Action)
	assert.Contains(t, hub.events, "requisition.approved")
}

func TestApproveRejectsNonPending(t *testing.T) {
	_, _, _, svc := newTestService()

	created, err := svc.Create(context.Background(), requesterActor(), cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	// Still in draft.
	_, err = svc.Approve(context.Background(), approverActor(), id, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApprovePermissions(t *testing.T) {
	_, _, _, svc := newTestService()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = svc.Approve(context.Background(), requesterActor(), id, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestApproveMissingRequisition(t *testing.T) {
	_, _, _, svc := newTestService()
	_, err := svc.Approve(context.Background(), approverActor(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectRoutesBackToDraft(t *testing.T) {
	repo, _, hub, svc := newTestService()
	owner := requesterActor()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), owner, input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	err = svc.Reject(context.Background(), approverActor(), id, "wrong vendor")
	require.NoError(t, err)

	stored := repo.reqs[id]
	assert.Equal(t, model.StatusDraft, stored.Status)

	history := stored.ApprovalHistory()
	require.Len(t, history, 1)
	assert.Equal(t, model.ApprovalActionRejected, history[0].Action)
	assert.Equal(t, "wrong vendor", history[0].Reason)
	assert.Contains(t, hub.events, "requisition.rejected")

	// The owner can edit again after the rejection.
	update := cableInput()
	update.Title = "Cables for workshop (revised)"
	resp, err := svc.Update(context.Background(), owner, id, update)
	require.NoError(t, err)
	assert.Equal(t, "Cables for workshop (revised)", resp.Title)
}

func TestRejectDefaultsReason(t *testing.T) {
	repo, _, _, svc := newTestService()

	created, err := svc.Create(context.Background(), requesterActor(), cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	// Rejection is allowed from any status, including draft.
	err = svc.Reject(context.Background(), finalApproverActor(), id, "")
	require.NoError(t, err)

	history := repo.reqs[id].ApprovalHistory()
	require.Len(t, history, 1)
	assert.Equal(t, model.DefaultRejectionReason, history[0].Reason)
}

func TestRejectFromApprovedDiscardsProgress(t *testing.T) {
	repo, _, _, svc := newTestService()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), requesterActor(), input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = svc.Approve(context.Background(), finalApproverActor(), id, "")
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, repo.reqs[id].Status)

	err = svc.Reject(context.Background(), approverActor(), id, "budget pulled")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, repo.reqs[id].Status)
	assert.Len(t, repo.reqs[id].ApprovalHistory(), 2)
}

func TestUpdateReplacesItems(t *testing.T) {
	repo, _, _, svc := newTestService()
	owner := requesterActor()

	created, err := svc.Create(context.Background(), owner, cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	update := cableInput()
	update.Items = []ItemInput{
		{Description: "Ethernet cable", Quantity: 10, UnitPrice: decimal.NewFromFloat(3.50)},
	}

	resp, err := svc.Update(context.Background(), owner, id, update)
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Ethernet cable", resp.Items[0].Description)
	assert.True(t, resp.TotalCost.Equal(decimal.NewFromFloat(35.00)))
	assert.Len(t, repo.reqs[id].Items, 1)
}

func TestUpdatePermissions(t *testing.T) {
	_, _, _, svc := newTestService()
	owner := requesterActor()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), owner, input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	// Another requester cannot touch it.
	_, err = svc.Update(context.Background(), requesterActor(), id, cableInput())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Once approved the owner is locked out.
	_, err = svc.Approve(context.Background(), finalApproverActor(), id, "")
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), owner, id, cableInput())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// A privileged editor still can.
	_, err = svc.Update(context.Background(), finalApproverActor(), id, cableInput())
	assert.NoError(t, err)
}

func TestUpdateRequesterCannotJumpStatus(t *testing.T) {
	repo, _, _, svc := newTestService()
	owner := requesterActor()

	created, err := svc.Create(context.Background(), owner, cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	update := cableInput()
	update.Status = model.StatusPurchased
	_, err = svc.Update(context.Background(), owner, id, update)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, repo.reqs[id].Status)

	// Draft to pending is the submission path and is allowed.
	update.Status = model.StatusPending
	_, err = svc.Update(context.Background(), owner, id, update)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, repo.reqs[id].Status)
}

func TestUpdateRequesterCannotOverwriteAdminFields(t *testing.T) {
	repo, _, _, svc := newTestService()
	owner := requesterActor()

	created, err := svc.Create(context.Background(), owner, cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	// Privileged editor sets the financials.
	adminUpdate := cableInput()
	gross := decimal.NewFromFloat(200.00)
	adminUpdate.BudgetCode = "BC-1"
	adminUpdate.GrossCost = &gross
	_, err = svc.Update(context.Background(), finalApproverActor(), id, adminUpdate)
	require.NoError(t, err)

	// The owner's edit leaves them untouched.
	ownerUpdate := cableInput()
	ownerUpdate.BudgetCode = "BC-HACKED"
	_, err = svc.Update(context.Background(), owner, id, ownerUpdate)
	require.NoError(t, err)

	stored := repo.reqs[id]
	assert.Equal(t, "BC-1", stored.BudgetCode)
	assert.True(t, stored.GrossCost.Valid)
	assert.True(t, stored.GrossCost.Decimal.Equal(gross))
}

func TestChangeStatus(t *testing.T) {
	repo, audit, _, svc := newTestService()

	input := cableInput()
	input.Status = model.StatusPurchased
	created, err := svc.Create(context.Background(), finalApproverActor(), input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	err = svc.ChangeStatus(context.Background(), finalApproverActor(), id, model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, repo.reqs[id].Status)
	assert.Equal(t, model.ActionChangeStatus, audit.entries[len(audit.entries)-1].Action)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	_, _, _, svc := newTestService()

	created, err := svc.Create(context.Background(), finalApproverActor(), cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	err = svc.ChangeStatus(context.Background(), finalApproverActor(), id, "cancelled")
	assert.ErrorIs(t, err, ErrInvalidState)

	err = svc.ChangeStatus(context.Background(), requesterActor(), id, model.StatusApproved)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDeleteRequisition(t *testing.T) {
	repo, _, hub, svc := newTestService()
	owner := requesterActor()

	created, err := svc.Create(context.Background(), owner, cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	err = svc.Delete(context.Background(), owner, id)
	require.NoError(t, err)
	assert.NotContains(t, repo.reqs, id)
	assert.Contains(t, hub.events, "requisition.deleted")
}

func TestDeleteDeniedAfterApproval(t *testing.T) {
	_, _, _, svc := newTestService()
	owner := requesterActor()

	input := cableInput()
	input.Status = model.StatusPending
	created, err := svc.Create(context.Background(), owner, input)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = svc.Approve(context.Background(), finalApproverActor(), id, "")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), owner, id)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Admin still can.
	err = svc.Delete(context.Background(), finalApproverActor(), id)
	assert.NoError(t, err)
}

func TestGetPermissions(t *testing.T) {
	_, _, _, svc := newTestService()
	owner := requesterActor()

	created, err := svc.Create(context.Background(), owner, cableInput())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = svc.Get(context.Background(), owner, id)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), requesterActor(), id)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Get(context.Background(), approverActor(), id)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScopesRequesters(t *testing.T) {
	_, _, _, svc := newTestService()
	alice := requesterActor()
	bob := permission.Actor{ID: uuid.New(), Username: "bob", Role: model.RoleRequester}

	_, err := svc.Create(context.Background(), alice, cableInput())
	require.NoError(t, err)
	other := cableInput()
	other.Title = "Monitor stand"
	_, err = svc.Create(context.Background(), bob, other)
	require.NoError(t, err)

	mine, total, err := svc.List(context.Background(), alice, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.ID.String(), mine[0].RequesterID)

	all, total, err := svc.List(context.Background(), approverActor(), ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	_, _, err = svc.List(context.Background(), approverActor(), ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrValidation)
}
