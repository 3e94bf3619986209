package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqtrack/internal/model"
)

func TestStatisticsSummary(t *testing.T) {
	repo := newFakeRequisitionRepo()
	svc := NewStatisticsService(repo)

	seed := func(status string, gross float64) {
		require.NoError(t, repo.Create(context.Background(), &model.Requisition{
			Title:       "Req " + status,
			Status:      status,
			RequesterID: uuid.New(),
			GrossCost:   decimal.NewNullDecimal(decimal.NewFromFloat(gross)),
		}))
	}
	seed(model.StatusDraft, 10)
	seed(model.StatusPending, 20)
	seed(model.StatusApproved, 100)
	seed(model.StatusDelivered, 50)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 4, summary.Total)
	require.Len(t, summary.ByStatus, 5)
	assert.Equal(t, model.StatusDraft, summary.ByStatus[0].Status)
	assert.EqualValues(t, 1, summary.ByStatus[0].Count)
	assert.Equal(t, model.StatusPurchased, summary.ByStatus[3].Status)
	assert.EqualValues(t, 0, summary.ByStatus[3].Count)

	// Draft and pending feed the pending amount; everything past approval
	// is committed spend.
	assert.True(t, summary.PendingAmount.Equal(decimal.NewFromFloat(30)))
	assert.True(t, summary.CommittedSpend.Equal(decimal.NewFromFloat(150)))
}

func TestStatisticsSummaryEmpty(t *testing.T) {
	svc := NewStatisticsService(newFakeRequisitionRepo())

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.Total)
	assert.True(t, summary.PendingAmount.IsZero())
	assert.True(t, summary.CommittedSpend.IsZero())
}
