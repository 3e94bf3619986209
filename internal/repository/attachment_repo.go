package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reqtrack/internal/model"
)

// AttachmentRepository defines the interface for data access of Attachment metadata
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *model.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attachment, error)
	ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository returns a new instance of AttachmentRepository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return dbFromContext(ctx, r.db).Create(attachment).Error
}

func (r *attachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attachment, error) {
	var attachment model.Attachment
	if err := dbFromContext(ctx, r.db).First(&attachment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) ListByRequisition(ctx context.Context, requisitionID uuid.UUID) ([]model.Attachment, error) {
	var attachments []model.Attachment
	err := dbFromContext(ctx, r.db).
		Preload("Uploader").
		Where("requisition_id = ?", requisitionID).
		Order("uploaded_at DESC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *attachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return dbFromContext(ctx, r.db).Where("id = ?", id).Delete(&model.Attachment{}).Error
}
