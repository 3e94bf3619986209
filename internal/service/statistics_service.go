package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"reqtrack/internal/model"
	"reqtrack/internal/repository"
)

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type StatisticsSummary struct {
	Total          int64           `json:"total"`
	ByStatus       []StatusCount   `json:"by_status"`
	CommittedSpend decimal.Decimal `json:"committed_spend"` // total across approved/purchased/delivered
	PendingAmount  decimal.Decimal `json:"pending_amount"`  // total across draft/pending
}

// StatisticsService rolls requisition data up for the dashboard
type StatisticsService interface {
	Summary(ctx context.Context) (*StatisticsSummary, error)
}

type statisticsService struct {
	repo repository.RequisitionRepository
}

// NewStatisticsService returns a new instance of StatisticsService
func NewStatisticsService(repo repository.RequisitionRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

func (s *statisticsService) Summary(ctx context.Context) (*StatisticsSummary, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count requisitions: %w", err)
	}

	summary := StatisticsSummary{
		CommittedSpend: decimal.Zero,
		PendingAmount:  decimal.Zero,
	}
	// Stable order matching the lifecycle
	for _, status := range []string{model.StatusDraft, model.StatusPending, model.StatusApproved, model.StatusPurchased, model.StatusDelivered} {
		count := counts[status]
		summary.Total += count
		summary.ByStatus = append(summary.ByStatus, StatusCount{Status: status, Count: count})
	}

	reqs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load requisitions: %w", err)
	}
	for i := range reqs {
		total := reqs[i].TotalCost()
		if model.EditableByOwner(reqs[i].Status) {
			summary.PendingAmount = summary.PendingAmount.Add(total)
		} else {
			summary.CommittedSpend = summary.CommittedSpend.Add(total)
		}
	}

	return &summary, nil
}
