package repository

import (
	"context"

	"tourinvoice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.SubmittedInvoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SubmittedInvoice, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.SubmittedInvoice, int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.SubmittedInvoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SubmittedInvoice, error) {
	var invoice model.SubmittedInvoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByOwner returns one page of an owner's invoices, newest first, and the owner's total count.
func (r *invoiceRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.SubmittedInvoice, int64, error) {
	var invoices []model.SubmittedInvoice
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.SubmittedInvoice{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("owner_id = ?", ownerID).Order("created_at desc").Offset(offset).Limit(limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}
