package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotalCost(t *testing.T) {
	r := &Requisition{
		Items: []Item{
			{Description: "HDMI cable", Quantity: 3, UnitPrice: decimal.NewFromFloat(15.00)},
			{Description: "USB-C cable", Quantity: 2, UnitPrice: decimal.NewFromFloat(5.00)},
		},
	}
	assert.True(t, r.TotalCost().Equal(decimal.NewFromFloat(55.00)))

	// Admin-entered gross cost takes precedence over the item sum.
	r.GrossCost = decimal.NewNullDecimal(decimal.NewFromFloat(60.00))
	assert.True(t, r.TotalCost().Equal(decimal.NewFromFloat(60.00)))

	empty := &Requisition{}
	assert.True(t, empty.TotalCost().IsZero())
}

func TestDisplaySupplier(t *testing.T) {
	r := &Requisition{ManualSupplier: "Corner Shop"}
	assert.Equal(t, "Corner Shop", r.DisplaySupplier())

	r.Supplier = &Supplier{Name: "Acme Ltd"}
	assert.Equal(t, "Acme Ltd", r.DisplaySupplier())
}

func TestValidStatus(t *testing.T) {
	for _, status := range []string{StatusDraft, StatusPending, StatusApproved, StatusPurchased, StatusDelivered} {
		assert.True(t, ValidStatus(status), status)
	}
	assert.False(t, ValidStatus("rejected"))
	assert.False(t, ValidStatus(""))
}

func TestEditableByOwner(t *testing.T) {
	assert.True(t, EditableByOwner(StatusDraft))
	assert.True(t, EditableByOwner(StatusPending))
	assert.False(t, EditableByOwner(StatusApproved))
	assert.False(t, EditableByOwner(StatusPurchased))
	assert.False(t, EditableByOwner(StatusDelivered))
}
