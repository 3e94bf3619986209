package service

import (
	"context"
	"fmt"
	"time"

	"reqtrack/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditService exposes the audit trail written alongside every
// requisition mutation.
type AuditService interface {
	List(ctx context.Context, offset, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService returns a new instance of AuditService
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) List(ctx context.Context, offset, limit int) ([]AuditLogResponse, int64, error) {
	entries, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}

	responses := make([]AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		resp := AuditLogResponse{
			ID:         entry.ID.String(),
			Action:     entry.Action,
			EntityID:   entry.EntityID,
			EntityName: entry.EntityName,
			Details:    entry.Details,
			CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.User != nil {
			resp.Username = entry.User.Username
		}
		responses = append(responses, resp)
	}

	return responses, total, nil
}
