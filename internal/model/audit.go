package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit action constants
const (
	ActionCreateRequisition = "CREATE_REQUISITION"
	ActionUpdateRequisition = "UPDATE_REQUISITION"
	ActionDeleteRequisition = "DELETE_REQUISITION"
	ActionApproveNote       = "APPROVE_NOTE"
	ActionFinalApprove      = "FINAL_APPROVE"
	ActionRejectRequisition = "REJECT_REQUISITION"
	ActionChangeStatus      = "CHANGE_STATUS"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
