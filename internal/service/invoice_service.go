package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tourinvoice/internal/logger"
	"tourinvoice/internal/metrics"
	"tourinvoice/internal/model"
	"tourinvoice/internal/repository"
	"tourinvoice/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidID       = errors.New("invalid invoice id")
)

// --- DTOs ---

type InvoiceSummary struct {
	ID           string `json:"id"`
	EmployeeName string `json:"employee_name"`
	Department   string `json:"department"`
	TourPeriod   string `json:"tour_period"`
	GrandTotal   string `json:"grand_total"`
	CreatedAt    string `json:"created_at"`
}

type InvoiceDetail struct {
	InvoiceSummary
	Document model.InvoiceDocument `json:"document"`
}

// ReportRenderer produces the PDF for a document. *render.Renderer implements it.
type ReportRenderer interface {
	Render(ctx context.Context, doc model.InvoiceDocument) ([]byte, error)
	RenderToFile(ctx context.Context, doc model.InvoiceDocument, dir string) (string, error)
}

// --- Interface ---

type InvoiceService interface {
	Validate(ctx context.Context, doc model.InvoiceDocument, ownerID string) validator.Result
	Submit(ctx context.Context, doc model.InvoiceDocument, ownerID string) (InvoiceSummary, error)
	Render(ctx context.Context, doc model.InvoiceDocument, ownerID string) ([]byte, error)
	RenderToTempFile(ctx context.Context, doc model.InvoiceDocument, ownerID string) (string, error)
	Get(ctx context.Context, id, ownerID string) (InvoiceDetail, error)
	List(ctx context.Context, ownerID string, page, limit int) ([]InvoiceSummary, int64, error)
	RenderStoredToTempFile(ctx context.Context, id, ownerID string) (string, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	renderer    ReportRenderer
	tempDir     string
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	renderer ReportRenderer,
	tempDir string,
	m *metrics.Metrics,
	log *zap.Logger,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		renderer:    renderer,
		tempDir:     tempDir,
		metrics:     m,
		log:         log,
	}
}

// --- Implementation ---

func (s *invoiceService) Validate(ctx context.Context, doc model.InvoiceDocument, ownerID string) validator.Result {
	res := validator.Validate(doc, ownerID)
	if !res.OK {
		s.metrics.IncValidationFailure()
		logger.FromContext(ctx, s.log).Info("invoice failed validation",
			zap.String("owner_id", ownerID),
			zap.Strings("errors", res.Errors))
	}
	return res
}

// Submit validates doc and stores it together with its audit entry in one transaction.
func (s *invoiceService) Submit(ctx context.Context, doc model.InvoiceDocument, ownerID string) (InvoiceSummary, error) {
	if err := s.Validate(ctx, doc, ownerID).Err(); err != nil {
		return InvoiceSummary{}, err
	}
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return InvoiceSummary{}, fmt.Errorf("invalid owner id: %w", err)
	}

	doc.OwnerID = ownerID
	data, err := json.Marshal(doc)
	if err != nil {
		return InvoiceSummary{}, fmt.Errorf("encode invoice: %w", err)
	}

	invoice := &model.SubmittedInvoice{
		OwnerID:      owner,
		EmployeeName: doc.Employee.EmployeeName,
		Department:   doc.Employee.Department,
		TourPeriod:   doc.Employee.TourPeriod,
		GrandTotal:   doc.Totals.GrandTotal,
		Document:     datatypes.JSON(data),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to store invoice: %w", err)
		}
		details, _ := json.Marshal(map[string]string{
			"grand_total": invoice.GrandTotal.StringFixed(2),
			"tour_period": invoice.TourPeriod,
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &owner,
			Action:     model.ActionSubmitInvoice,
			EntityID:   invoice.ID.String(),
			EntityName: invoice.EmployeeName,
			Details:    string(details),
		})
	})
	if err != nil {
		return InvoiceSummary{}, err
	}

	logger.FromContext(ctx, s.log).Info("invoice submitted",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("owner_id", ownerID))
	return toSummary(invoice), nil
}

// Render validates doc and returns the PDF bytes.
func (s *invoiceService) Render(ctx context.Context, doc model.InvoiceDocument, ownerID string) ([]byte, error) {
	if err := s.Validate(ctx, doc, ownerID).Err(); err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, doc)
}

// RenderToTempFile validates doc and writes the PDF under the configured temp dir.
// The caller removes the returned file.
func (s *invoiceService) RenderToTempFile(ctx context.Context, doc model.InvoiceDocument, ownerID string) (string, error) {
	if err := s.Validate(ctx, doc, ownerID).Err(); err != nil {
		return "", err
	}
	return s.renderer.RenderToFile(ctx, doc, s.tempDir)
}

func (s *invoiceService) Get(ctx context.Context, id, ownerID string) (InvoiceDetail, error) {
	invoice, err := s.find(ctx, id, ownerID)
	if err != nil {
		return InvoiceDetail{}, err
	}
	doc, err := decodeDocument(invoice)
	if err != nil {
		return InvoiceDetail{}, err
	}
	return InvoiceDetail{InvoiceSummary: toSummary(invoice), Document: doc}, nil
}

func (s *invoiceService) List(ctx context.Context, ownerID string, page, limit int) ([]InvoiceSummary, int64, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid owner id: %w", err)
	}
	invoices, total, err := s.invoiceRepo.ListByOwner(ctx, owner, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	res := make([]InvoiceSummary, 0, len(invoices))
	for i := range invoices {
		res = append(res, toSummary(&invoices[i]))
	}
	return res, total, nil
}

// RenderStoredToTempFile re-renders a submitted invoice. Stored documents were
// validated on submission, so they go straight to the renderer.
func (s *invoiceService) RenderStoredToTempFile(ctx context.Context, id, ownerID string) (string, error) {
	invoice, err := s.find(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	doc, err := decodeDocument(invoice)
	if err != nil {
		return "", err
	}
	path, err := s.renderer.RenderToFile(ctx, doc, s.tempDir)
	if err != nil {
		return "", err
	}

	owner := invoice.OwnerID
	if err := s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     &owner,
		Action:     model.ActionRenderInvoice,
		EntityID:   invoice.ID.String(),
		EntityName: invoice.EmployeeName,
	}); err != nil {
		logger.FromContext(ctx, s.log).Warn("failed to record render audit entry", zap.String("invoice_id", id), zap.Error(err))
	}
	return path, nil
}

// find loads an invoice owned by ownerID. Invoices of other owners are reported as not found.
func (s *invoiceService) find(ctx context.Context, id, ownerID string) (*model.SubmittedInvoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if invoice.OwnerID.String() != ownerID {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

func decodeDocument(invoice *model.SubmittedInvoice) (model.InvoiceDocument, error) {
	var doc model.InvoiceDocument
	if err := json.Unmarshal(invoice.Document, &doc); err != nil {
		return model.InvoiceDocument{}, fmt.Errorf("stored invoice %s is unreadable: %w", invoice.ID, err)
	}
	return doc, nil
}

func toSummary(invoice *model.SubmittedInvoice) InvoiceSummary {
	return InvoiceSummary{
		ID:           invoice.ID.String(),
		EmployeeName: invoice.EmployeeName,
		Department:   invoice.Department,
		TourPeriod:   invoice.TourPeriod,
		GrandTotal:   invoice.GrandTotal.StringFixed(2),
		CreatedAt:    invoice.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
