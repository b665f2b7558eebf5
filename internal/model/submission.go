package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WizardSnapshot stores the in-progress document of one wizard session as a JSON blob.
// Data is kept verbatim so a resumed session can detect and discard a corrupt snapshot.
type WizardSnapshot struct {
	SessionID string         `gorm:"type:varchar(100);primaryKey" json:"session_id"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null" json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SubmittedInvoice is a validated, frozen InvoiceDocument.
type SubmittedInvoice struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
	EmployeeName string          `gorm:"type:varchar(255);not null" json:"employee_name"`
	Department   string          `gorm:"type:varchar(255)" json:"department"`
	TourPeriod   string          `gorm:"type:varchar(255)" json:"tour_period"`
	GrandTotal   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"grand_total"`
	Document     datatypes.JSON  `gorm:"type:jsonb;not null" json:"document"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

func (s *SubmittedInvoice) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
