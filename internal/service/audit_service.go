package service

import (
	"context"
	"fmt"

	"tourinvoice/internal/model"
	"tourinvoice/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, ownerID string, page, limit int) ([]AuditLogResponse, int64, error)
	GetInvoiceAuditLogs(ctx context.Context, invoiceID, ownerID string) ([]AuditLogResponse, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs pages through the caller's own submit, render and reset events
func (s *auditService) GetAuditLogs(ctx context.Context, ownerID string, page, limit int) ([]AuditLogResponse, int64, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid owner id: %w", err)
	}
	logs, total, err := s.auditRepo.ListByUser(ctx, owner, page, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, toAuditResponse(l))
	}
	return res, total, nil
}

// GetInvoiceAuditLogs returns an invoice's history. Entries recorded for other users are
// skipped, so a caller asking about someone else's invoice sees ErrInvoiceNotFound.
func (s *auditService) GetInvoiceAuditLogs(ctx context.Context, invoiceID, ownerID string) ([]AuditLogResponse, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return nil, ErrInvalidID
	}
	logs, err := s.auditRepo.ListByEntity(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		if l.UserID == nil || l.UserID.String() != ownerID {
			continue
		}
		res = append(res, toAuditResponse(l))
	}
	if len(res) == 0 {
		return nil, ErrInvoiceNotFound
	}
	return res, nil
}

func toAuditResponse(l model.AuditLog) AuditLogResponse {
	userID := ""
	if l.UserID != nil {
		userID = l.UserID.String()
	}
	return AuditLogResponse{
		ID:         l.ID.String(),
		UserID:     userID,
		Action:     l.Action,
		EntityID:   l.EntityID,
		EntityName: l.EntityName,
		Details:    l.Details,
		CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
