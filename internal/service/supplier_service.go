package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reqtrack/internal/model"
	"reqtrack/internal/repository"
)

type SupplierInput struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
}

type SupplierResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	CreatedAt     string `json:"created_at"`
}

// SupplierService manages vendor records. A supplier stays deletable only
// while no requisition references it.
type SupplierService interface {
	Create(ctx context.Context, input SupplierInput) (*SupplierResponse, error)
	List(ctx context.Context) ([]SupplierResponse, error)
	Update(ctx context.Context, id uuid.UUID, input SupplierInput) (*SupplierResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type supplierService struct {
	repo repository.SupplierRepository
	reqs repository.RequisitionRepository
}

// NewSupplierService returns a new instance of SupplierService
func NewSupplierService(repo repository.SupplierRepository, reqs repository.RequisitionRepository) SupplierService {
	return &supplierService{repo: repo, reqs: reqs}
}

func mapSupplierResponse(s *model.Supplier) *SupplierResponse {
	return &SupplierResponse{
		ID:            s.ID.String(),
		Name:          s.Name,
		ContactPerson: s.ContactPerson,
		Email:         s.Email,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}

func (s *supplierService) Create(ctx context.Context, input SupplierInput) (*SupplierResponse, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", ErrValidation)
	}

	supplier := &model.Supplier{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	return mapSupplierResponse(supplier), nil
}

func (s *supplierService) List(ctx context.Context) ([]SupplierResponse, error) {
	suppliers, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	responses := make([]SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		responses = append(responses, *mapSupplierResponse(&suppliers[i]))
	}
	return responses, nil
}

func (s *supplierService) Update(ctx context.Context, id uuid.UUID, input SupplierInput) (*SupplierResponse, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", ErrValidation)
	}

	supplier, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: supplier %s", ErrNotFound, id)
		}
		return nil, err
	}

	supplier.Name = input.Name
	supplier.ContactPerson = input.ContactPerson
	supplier.Email = input.Email

	if err := s.repo.Update(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to update supplier: %w", err)
	}
	return mapSupplierResponse(supplier), nil
}

func (s *supplierService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: supplier %s", ErrNotFound, id)
		}
		return err
	}

	count, err := s.reqs.CountBySupplier(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: cannot delete supplier - it is being used in %d requisition(s)", ErrValidation, count)
	}

	return s.repo.Delete(ctx, id)
}
