// Package permission decides which actions an actor may take on a
// requisition. It is a pure evaluator: callers consult it before every
// write or privileged read and it never touches state itself.
package permission

import (
	"github.com/google/uuid"

	"reqtrack/internal/model"
)

// Action identifies an operation checked against the rule table.
type Action string

const (
	ActionView             Action = "view"
	ActionEdit             Action = "edit"
	ActionDelete           Action = "delete"
	ActionUploadAttachment Action = "upload_attachment"
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionChangeStatus     Action = "change_status"
	ActionSetAdminFields   Action = "set_admin_fields"
)

// Actor carries the authenticated identity and role threaded through every
// core call. The core trusts these values as already authenticated.
type Actor struct {
	ID       uuid.UUID
	Username string
	Role     string
}

// Privileged reports whether the actor holds an approver or admin role.
func (a Actor) Privileged() bool {
	return model.PrivilegedRole(a.Role)
}

// Can evaluates the rule table for one action against a requisition's
// owner and status. Unknown roles and unknown actions are denied.
func Can(actor Actor, action Action, requesterID uuid.UUID, status string) bool {
	if actor.Privileged() {
		// Approvals are the one privileged action gated on status.
		if action == ActionApprove {
			return status == model.StatusPending
		}
		return true
	}

	if actor.Role != model.RoleRequester {
		return false
	}

	owner := actor.ID == requesterID
	switch action {
	case ActionView:
		return owner
	case ActionEdit, ActionDelete, ActionUploadAttachment:
		return owner && model.EditableByOwner(status)
	default:
		// approve, reject, change_status, set_admin_fields
		return false
	}
}

// CanView reports whether the actor may read the requisition at all.
func CanView(actor Actor, requesterID uuid.UUID, status string) bool {
	return Can(actor, ActionView, requesterID, status)
}

// CanEdit reports whether the actor may modify the requisition. This is
// also exposed read-side so clients can render edit affordances.
func CanEdit(actor Actor, requesterID uuid.UUID, status string) bool {
	return Can(actor, ActionEdit, requesterID, status)
}

// CanDelete reports whether the actor may destroy the requisition.
func CanDelete(actor Actor, requesterID uuid.UUID, status string) bool {
	return Can(actor, ActionDelete, requesterID, status)
}

// CanSetAdminFields reports whether the actor may write financial and
// administrative fields. Requester input for these fields is stripped,
// not rejected.
func CanSetAdminFields(actor Actor) bool {
	return actor.Privileged()
}
