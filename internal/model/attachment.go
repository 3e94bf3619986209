package model

import (
	"time"

	"github.com/google/uuid"
)

// Attachment records a file uploaded against a requisition. The file itself
// lives on disk under the configured uploads directory; rows cascade when
// the owning requisition is deleted.
type Attachment struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequisitionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"requisition_id"`
	Filename      string     `gorm:"type:varchar(255);not null" json:"filename"` // Stored name on disk
	OriginalName  string     `gorm:"type:varchar(255);not null" json:"original_name"`
	MimeType      string     `gorm:"type:varchar(100)" json:"mime_type"`
	Size          int64      `gorm:"type:bigint" json:"size"`
	UploadedBy    *uuid.UUID `gorm:"type:uuid" json:"uploaded_by"`
	Uploader      *User      `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
	UploadedAt    time.Time  `gorm:"autoCreateTime" json:"uploaded_at"`
}
