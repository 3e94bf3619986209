package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reqtrack/internal/model"
)

type fakeSupplierRepo struct {
	suppliers map[uuid.UUID]*model.Supplier
}

func newFakeSupplierRepo() *fakeSupplierRepo {
	return &fakeSupplierRepo{suppliers: make(map[uuid.UUID]*model.Supplier)}
}

func (r *fakeSupplierRepo) Create(_ context.Context, supplier *model.Supplier) error {
	if supplier.ID == uuid.Nil {
		supplier.ID = uuid.New()
	}
	stored := *supplier
	r.suppliers[supplier.ID] = &stored
	return nil
}

func (r *fakeSupplierRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Supplier, error) {
	supplier, ok := r.suppliers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *supplier
	return &copied, nil
}

func (r *fakeSupplierRepo) List(_ context.Context) ([]model.Supplier, error) {
	var out []model.Supplier
	for _, supplier := range r.suppliers {
		out = append(out, *supplier)
	}
	return out, nil
}

func (r *fakeSupplierRepo) Update(_ context.Context, supplier *model.Supplier) error {
	if _, ok := r.suppliers[supplier.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *supplier
	r.suppliers[supplier.ID] = &stored
	return nil
}

func (r *fakeSupplierRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.suppliers, id)
	return nil
}

func TestSupplierCreateAndUpdate(t *testing.T) {
	repo := newFakeSupplierRepo()
	svc := NewSupplierService(repo, newFakeRequisitionRepo())

	created, err := svc.Create(context.Background(), SupplierInput{Name: "Acme Ltd", Email: "sales@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", created.Name)

	_, err = svc.Create(context.Background(), SupplierInput{})
	assert.ErrorIs(t, err, ErrValidation)

	id := uuid.MustParse(created.ID)
	updated, err := svc.Update(context.Background(), id, SupplierInput{Name: "Acme Limited", ContactPerson: "Jo"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Limited", updated.Name)
	assert.Equal(t, "Jo", updated.ContactPerson)

	_, err = svc.Update(context.Background(), uuid.New(), SupplierInput{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupplierDeleteGuard(t *testing.T) {
	repo := newFakeSupplierRepo()
	reqRepo := newFakeRequisitionRepo()
	svc := NewSupplierService(repo, reqRepo)

	created, err := svc.Create(context.Background(), SupplierInput{Name: "Acme Ltd"})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	// Referenced by a requisition: delete is blocked.
	require.NoError(t, reqRepo.Create(context.Background(), &model.Requisition{
		Title:       "Cables",
		Status:      model.StatusDraft,
		SupplierID:  &id,
		RequesterID: uuid.New(),
	}))
	err = svc.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "being used in 1 requisition(s)")

	// Unreferenced suppliers can go.
	other, err := svc.Create(context.Background(), SupplierInput{Name: "Corner Shop"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), uuid.MustParse(other.ID)))

	err = svc.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
