package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reqtrack/internal/model"
)

// RequisitionFilter narrows List results. Search matches title,
// justification, supplier names and the PO/budget reference fields.
type RequisitionFilter struct {
	Status      string
	Search      string
	RequesterID *uuid.UUID // Set for requester-role actors so they only see their own
	Offset      int
	Limit       int
}

// RequisitionRepository owns persisted requisition, item and ledger
// records. The lifecycle service is its sole mutator.
type RequisitionRepository interface {
	Create(ctx context.Context, req *model.Requisition) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error)
	ListAll(ctx context.Context) ([]model.Requisition, error)
	Update(ctx context.Context, req *model.Requisition) error
	ReplaceItems(ctx context.Context, requisitionID uuid.UUID, items []model.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBySupplier(ctx context.Context, supplierID uuid.UUID) (int64, error)
	CountByRequester(ctx context.Context, requesterID uuid.UUID) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type requisitionRepository struct {
	db *gorm.DB
}

// NewRequisitionRepository returns a GORM-backed RequisitionRepository
func NewRequisitionRepository(db *gorm.DB) RequisitionRepository {
	return &requisitionRepository{db: db}
}

func (r *requisitionRepository) Create(ctx context.Context, req *model.Requisition) error {
	return dbFromContext(ctx, r.db).Create(req).Error
}

func (r *requisitionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	err := dbFromContext(ctx, r.db).
		Preload("Items").
		Preload("Supplier").
		Preload("Requester").
		Preload("Attachments").
		Preload("Attachments.Uploader").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requisitionRepository) List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error) {
	db := dbFromContext(ctx, r.db)

	query := db.Model(&model.Requisition{}).
		Joins("LEFT JOIN suppliers ON suppliers.id = requisitions.supplier_id")

	if filter.Status != "" {
		query = query.Where("requisitions.status = ?", filter.Status)
	}
	if filter.RequesterID != nil {
		query = query.Where("requisitions.requester_id = ?", *filter.RequesterID)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		query = query.Where(
			"requisitions.title ILIKE ? OR requisitions.justification ILIKE ? OR suppliers.name ILIKE ? OR requisitions.manual_supplier ILIKE ? OR requisitions.po_number ILIKE ? OR requisitions.budget_code ILIKE ?",
			term, term, term, term, term, term,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []model.Requisition
	err := query.
		Preload("Items").
		Preload("Supplier").
		Preload("Requester").
		Order("requisitions.created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

func (r *requisitionRepository) ListAll(ctx context.Context) ([]model.Requisition, error) {
	var reqs []model.Requisition
	err := dbFromContext(ctx, r.db).
		Preload("Items").
		Preload("Supplier").
		Preload("Requester").
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *requisitionRepository) Update(ctx context.Context, req *model.Requisition) error {
	// Save without touching associations; item replacement is explicit
	return dbFromContext(ctx, r.db).Omit("Items", "Attachments", "Supplier", "Requester").Save(req).Error
}

func (r *requisitionRepository) ReplaceItems(ctx context.Context, requisitionID uuid.UUID, items []model.Item) error {
	db := dbFromContext(ctx, r.db)

	if err := db.Where("requisition_id = ?", requisitionID).Delete(&model.Item{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].RequisitionID = requisitionID
	}
	return db.Create(&items).Error
}

func (r *requisitionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := dbFromContext(ctx, r.db)

	// Items and attachments cascade at the database level; delete rows
	// explicitly as well so environments without FK constraints stay clean.
	if err := db.Where("requisition_id = ?", id).Delete(&model.Item{}).Error; err != nil {
		return err
	}
	if err := db.Where("requisition_id = ?", id).Delete(&model.Attachment{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Requisition{}).Error
}

func (r *requisitionRepository) CountBySupplier(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.db).Model(&model.Requisition{}).
		Where("supplier_id = ?", supplierID).Count(&count).Error
	return count, err
}

func (r *requisitionRepository) CountByRequester(ctx context.Context, requesterID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.db).Model(&model.Requisition{}).
		Where("requester_id = ?", requesterID).Count(&count).Error
	return count, err
}

func (r *requisitionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := dbFromContext(ctx, r.db).Model(&model.Requisition{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
