package permission

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"reqtrack/internal/model"
)

func TestCan(t *testing.T) {
	ownerID := uuid.New()
	otherID := uuid.New()

	owner := Actor{ID: ownerID, Username: "alice", Role: model.RoleRequester}
	stranger := Actor{ID: otherID, Username: "bob", Role: model.RoleRequester}
	approver := Actor{ID: uuid.New(), Username: "carol", Role: model.RoleApprover}
	admin := Actor{ID: uuid.New(), Username: "dave", Role: model.RoleAdmin}

	tests := []struct {
		name     string
		actor    Actor
		action   Action
		status   string
		expected bool
	}{
		{
			name:     "owner views own draft",
			actor:    owner,
			action:   ActionView,
			status:   model.StatusDraft,
			expected: true,
		},
		{
			name:     "owner views own delivered requisition",
			actor:    owner,
			action:   ActionView,
			status:   model.StatusDelivered,
			expected: true,
		},
		{
			name:     "non-owner requester cannot view",
			actor:    stranger,
			action:   ActionView,
			status:   model.StatusDraft,
			expected: false,
		},
		{
			name:     "owner edits draft",
			actor:    owner,
			action:   ActionEdit,
			status:   model.StatusDraft,
			expected: true,
		},
		{
			name:     "owner edits pending",
			actor:    owner,
			action:   ActionEdit,
			status:   model.StatusPending,
			expected: true,
		},
		{
			name:     "owner cannot edit after approval",
			actor:    owner,
			action:   ActionEdit,
			status:   model.StatusApproved,
			expected: false,
		},
		{
			name:     "owner cannot delete purchased requisition",
			actor:    owner,
			action:   ActionDelete,
			status:   model.StatusPurchased,
			expected: false,
		},
		{
			name:     "owner uploads attachment while pending",
			actor:    owner,
			action:   ActionUploadAttachment,
			status:   model.StatusPending,
			expected: true,
		},
		{
			name:     "owner cannot upload attachment once approved",
			actor:    owner,
			action:   ActionUploadAttachment,
			status:   model.StatusApproved,
			expected: false,
		},
		{
			name:     "requester cannot approve own requisition",
			actor:    owner,
			action:   ActionApprove,
			status:   model.StatusPending,
			expected: false,
		},
		{
			name:     "requester cannot change status",
			actor:    owner,
			action:   ActionChangeStatus,
			status:   model.StatusApproved,
			expected: false,
		},
		{
			name:     "approver views any requisition",
			actor:    approver,
			action:   ActionView,
			status:   model.StatusDraft,
			expected: true,
		},
		{
			name:     "approver edits after approval",
			actor:    approver,
			action:   ActionEdit,
			status:   model.StatusApproved,
			expected: true,
		},
		{
			name:     "approver approves pending requisition",
			actor:    approver,
			action:   ActionApprove,
			status:   model.StatusPending,
			expected: true,
		},
		{
			name:     "approver cannot approve draft",
			actor:    approver,
			action:   ActionApprove,
			status:   model.StatusDraft,
			expected: false,
		},
		{
			name:     "approver cannot approve already approved requisition",
			actor:    approver,
			action:   ActionApprove,
			status:   model.StatusApproved,
			expected: false,
		},
		{
			name:     "approver rejects approved requisition",
			actor:    approver,
			action:   ActionReject,
			status:   model.StatusApproved,
			expected: true,
		},
		{
			name:     "admin changes status of delivered requisition",
			actor:    admin,
			action:   ActionChangeStatus,
			status:   model.StatusDelivered,
			expected: true,
		},
		{
			name:     "admin deletes approved requisition",
			actor:    admin,
			action:   ActionDelete,
			status:   model.StatusApproved,
			expected: true,
		},
		{
			name:     "admin cannot approve non-pending requisition",
			actor:    admin,
			action:   ActionApprove,
			status:   model.StatusPurchased,
			expected: false,
		},
		{
			name:     "unknown role denied",
			actor:    Actor{ID: ownerID, Username: "eve", Role: "auditor"},
			action:   ActionView,
			status:   model.StatusDraft,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Can(tt.actor, tt.action, ownerID, tt.status)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCanSetAdminFields(t *testing.T) {
	assert.False(t, CanSetAdminFields(Actor{Role: model.RoleRequester}))
	assert.True(t, CanSetAdminFields(Actor{Role: model.RoleApprover}))
	assert.True(t, CanSetAdminFields(Actor{Role: model.RoleAdmin}))
}

func TestPrivileged(t *testing.T) {
	assert.False(t, Actor{Role: model.RoleRequester}.Privileged())
	assert.True(t, Actor{Role: model.RoleApprover}.Privileged())
	assert.True(t, Actor{Role: model.RoleAdmin}.Privileged())
	assert.False(t, Actor{Role: ""}.Privileged())
}
