package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequisitionStatus enum constants. "rejected" is deliberately absent:
// a rejection routes the requisition back to draft.
const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusPurchased = "purchased"
	StatusDelivered = "delivered"
)

// Urgency enum constants
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// ValidStatus reports whether status is one of the five lifecycle statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusDraft, StatusPending, StatusApproved, StatusPurchased, StatusDelivered:
		return true
	}
	return false
}

// ValidUrgency reports whether urgency is a known urgency level.
func ValidUrgency(urgency string) bool {
	switch urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// EditableByOwner reports whether the owning requester may still modify a
// requisition in this status. Once approval is granted the record is locked
// for requesters.
func EditableByOwner(status string) bool {
	return status == StatusDraft || status == StatusPending
}

// Requisition represents a purchase request tracked from draft to delivery.
// Financial and administrative fields (budget code, PO number, envelope
// number, cost breakdown) are nil/empty unless a privileged role sets them.
type Requisition struct {
	ID                    uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title                 string              `gorm:"type:varchar(255);not null" json:"title"`
	Justification         string              `gorm:"type:text" json:"justification"`
	Urgency               string              `gorm:"type:varchar(20);not null;default:'medium'" json:"urgency"`
	RequestedDeliveryDate *time.Time          `gorm:"type:date" json:"requested_delivery_date"`
	ExpectedDeliveryDate  *time.Time          `gorm:"type:date" json:"expected_delivery_date"` // Set by privileged roles only
	SupplierID            *uuid.UUID          `gorm:"type:uuid;index" json:"supplier_id"`
	Supplier              *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	ManualSupplier        string              `gorm:"type:varchar(255)" json:"manual_supplier"` // Free-text fallback; linked supplier preferred for display
	Links                 string              `gorm:"type:text" json:"links"`
	Status                string              `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	BudgetCode            string              `gorm:"type:varchar(100)" json:"budget_code"`
	PONumber              string              `gorm:"type:varchar(100)" json:"po_number"`
	EnvelopeNumber        string              `gorm:"type:varchar(100)" json:"envelope_number"`
	RigAllocation         string              `gorm:"type:varchar(100)" json:"rig_allocation"`
	NetCost               decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"net_cost"`
	VATRate               decimal.NullDecimal `gorm:"type:decimal(6,2)" json:"vat_rate"`
	VATAmount             decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"vat_amount"`
	GrossCost             decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"gross_cost"`
	RequesterID           uuid.UUID           `gorm:"type:uuid;not null;index" json:"requester_id"` // Immutable after creation
	Requester             *User               `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	ApprovalNotes         string              `gorm:"type:jsonb" json:"-"` // Serialized ledger, see ledger.go
	FinalApprovedAt       *time.Time          `json:"final_approved_at"`   // Set exactly once, by the designated final approver
	Items                 []Item              `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE" json:"items"`
	Attachments           []Attachment        `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// Item represents a line item owned by exactly one requisition. Items are
// replaced wholesale on requisition update, never diffed.
type Item struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequisitionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"requisition_id"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	Quantity      int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
}

// TotalCost returns the display total: the admin-entered gross cost when
// present, otherwise the sum over items of quantity times unit price.
func (r *Requisition) TotalCost() decimal.Decimal {
	if r.GrossCost.Valid {
		return r.GrossCost.Decimal
	}
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// DisplaySupplier returns the linked supplier name when one is set,
// falling back to the free-text manual supplier.
func (r *Requisition) DisplaySupplier() string {
	if r.Supplier != nil && r.Supplier.Name != "" {
		return r.Supplier.Name
	}
	return r.ManualSupplier
}
