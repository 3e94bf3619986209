package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"reqtrack/internal/model"
	"reqtrack/internal/repository"
)

// ExportService renders all requisitions into a spreadsheet, including the
// items summary, cost breakdown and a human-readable approval history.
type ExportService interface {
	RequisitionsWorkbook(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo repository.RequisitionRepository
}

// NewExportService returns a new instance of ExportService
func NewExportService(repo repository.RequisitionRepository) ExportService {
	return &exportService{repo: repo}
}

const exportSheet = "Requisitions"

var exportHeader = []interface{}{
	"ID", "Date Created", "Status", "Title", "Requester", "Supplier",
	"Items", "Net Cost", "VAT Rate (%)", "VAT Amount", "Gross Cost", "Total",
	"Urgency", "Requested Delivery", "Expected Delivery", "Rig Allocation",
	"Justification", "PO Number", "Budget Code", "Envelope Number", "Links",
	"Approval History",
}

func (s *exportService) RequisitionsWorkbook(ctx context.Context) (*bytes.Buffer, string, error) {
	reqs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load requisitions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, "", err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, "", err
	}

	for i := range reqs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, exportRow(&reqs[i])); err != nil {
			return nil, "", err
		}
	}

	// Widen the free-text columns
	_ = f.SetColWidth(exportSheet, "D", "F", 25)
	_ = f.SetColWidth(exportSheet, "G", "G", 50)
	_ = f.SetColWidth(exportSheet, "Q", "Q", 30)
	_ = f.SetColWidth(exportSheet, "V", "V", 50)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	filename := "requisitions_" + time.Now().Format("2006-01-02") + ".xlsx"
	return buf, filename, nil
}

func exportRow(req *model.Requisition) *[]interface{} {
	items := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, fmt.Sprintf("%s (Qty: %d, Unit Price: %s)", item.Description, item.Quantity, item.UnitPrice.StringFixed(2)))
	}

	requesterName := ""
	if req.Requester != nil {
		requesterName = req.Requester.Username
	}

	row := []interface{}{
		req.ID.String(),
		req.CreatedAt.Format("2006-01-02"),
		strings.ToUpper(req.Status),
		req.Title,
		requesterName,
		req.DisplaySupplier(),
		strings.Join(items, "; "),
		nullDecimalString(req.NetCost),
		nullDecimalString(req.VATRate),
		nullDecimalString(req.VATAmount),
		nullDecimalString(req.GrossCost),
		req.TotalCost().StringFixed(2),
		req.Urgency,
		dateString(req.RequestedDeliveryDate),
		dateString(req.ExpectedDeliveryDate),
		req.RigAllocation,
		req.Justification,
		req.PONumber,
		req.BudgetCode,
		req.EnvelopeNumber,
		req.Links,
		RenderApprovalHistory(req.ApprovalHistory()),
	}
	return &row
}

// RenderApprovalHistory reconstructs the ledger as readable text in append
// order: actor, action, timestamp, and any comments or reason.
func RenderApprovalHistory(notes []model.ApprovalNote) string {
	parts := make([]string, 0, len(notes))
	for _, note := range notes {
		text := fmt.Sprintf("%s %s at %s", note.Username, note.Action, note.Timestamp.Format("02/01/2006 15:04:05"))
		if note.Comments != "" {
			text += " (" + note.Comments + ")"
		}
		if note.Reason != "" {
			text += " (" + note.Reason + ")"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}

func nullDecimalString(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}
	return value.Decimal.StringFixed(2)
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
