package model

import (
	"encoding/json"
	"time"
)

// ApprovalAction enum constants
const (
	ApprovalActionApproved = "approved"
	ApprovalActionRejected = "rejected"
)

// DefaultRejectionReason is recorded when a rejection arrives without one.
const DefaultRejectionReason = "No reason provided"

// ApprovalNote is a single entry in a requisition's approval ledger.
// Notes are append-only and immutable once written; their order in the
// serialized array is the chronological order.
type ApprovalNote struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"` // approved or rejected
	Timestamp time.Time `json:"timestamp"`
	Comments  string    `json:"comments,omitempty"` // approval only
	Reason    string    `json:"reason,omitempty"`   // rejection only
}

// ParseApprovalNotes decodes the serialized ledger. Malformed or empty
// data degrades to an empty history rather than failing the read.
func ParseApprovalNotes(raw string) []ApprovalNote {
	if raw == "" {
		return []ApprovalNote{}
	}
	var notes []ApprovalNote
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return []ApprovalNote{}
	}
	return notes
}

// AppendApprovalNote re-serializes the ledger with note appended.
// Existing entries are retained untouched.
func AppendApprovalNote(raw string, note ApprovalNote) string {
	notes := append(ParseApprovalNotes(raw), note)
	encoded, err := json.Marshal(notes)
	if err != nil {
		return raw
	}
	return string(encoded)
}

// HasFinalApproval reports whether the requisition has received its
// terminal approval.
func (r *Requisition) HasFinalApproval() bool {
	return r.FinalApprovedAt != nil
}

// ApprovalHistory returns the decoded ledger attached to the requisition.
func (r *Requisition) ApprovalHistory() []ApprovalNote {
	return ParseApprovalNotes(r.ApprovalNotes)
}
