package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reqtrack/internal/model"
)

func TestRequisitionsWorkbook(t *testing.T) {
	repo := newFakeRequisitionRepo()
	svc := NewExportService(repo)

	notes := model.AppendApprovalNote("", model.ApprovalNote{
		UserID:    "u1",
		Username:  "carol",
		Action:    model.ApprovalActionApproved,
		Timestamp: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		Comments:  "ok",
	})
	require.NoError(t, repo.Create(context.Background(), &model.Requisition{
		Title:          "Cables for workshop",
		Status:         model.StatusApproved,
		Urgency:        model.UrgencyMedium,
		ManualSupplier: "Corner Shop",
		RequesterID:    uuid.New(),
		ApprovalNotes:  notes,
		Items: []model.Item{
			{Description: "HDMI cable", Quantity: 3, UnitPrice: decimal.NewFromFloat(15.00)},
		},
	}))

	buf, filename, err := svc.RequisitionsWorkbook(context.Background())
	require.NoError(t, err)
	assert.Contains(t, filename, "requisitions_")
	assert.Contains(t, filename, ".xlsx")

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Requisitions")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Approval History", rows[0][len(exportHeader)-1])

	row := rows[1]
	assert.Equal(t, "APPROVED", row[2])
	assert.Equal(t, "Cables for workshop", row[3])
	assert.Equal(t, "Corner Shop", row[5])
	assert.Contains(t, row[6], "HDMI cable (Qty: 3, Unit Price: 15.00)")
	assert.Equal(t, "45.00", row[11])
}

func TestRenderApprovalHistory(t *testing.T) {
	notes := []model.ApprovalNote{
		{
			Username:  "carol",
			Action:    model.ApprovalActionApproved,
			Timestamp: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
			Comments:  "looks fine",
		},
		{
			Username:  "dave",
			Action:    model.ApprovalActionRejected,
			Timestamp: time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC),
			Reason:    "wrong vendor",
		},
	}

	rendered := RenderApprovalHistory(notes)
	assert.Equal(t, "carol approved at 05/01/2026 10:00:00 (looks fine); dave rejected at 06/01/2026 09:30:00 (wrong vendor)", rendered)

	assert.Empty(t, RenderApprovalHistory(nil))
}
