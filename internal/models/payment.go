package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction statuses set by webhook resolution
const (
	TransactionStatusSuccessful    = "SUCCESSFUL"
	TransactionStatusPartiallyPaid = "PARTIALLY_PAID"
)

// Payment records a subscription purchase and its provider lifecycle
type Payment struct {
	ID                  uuid.UUID      `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`
	UserID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	PaymentRef          *string        `gorm:"type:varchar(255)" json:"payment_ref"`
	PaymentDate         time.Time      `gorm:"not null" json:"payment_date"`
	ValidUntil          time.Time      `gorm:"not null;index" json:"valid_until"`
	Amount              float64        `gorm:"type:decimal(15,2);not null" json:"amount"`
	MpesaTransactionID  *string        `gorm:"type:varchar(255);uniqueIndex" json:"mpesa_transaction_id"`
	TransactionRequest  datatypes.JSON `json:"transaction_request"`
	TransactionResponse datatypes.JSON `json:"transaction_response"`
	TransactionCallback datatypes.JSON `json:"transaction_callback"`
	TransactionStatus   *string        `gorm:"type:varchar(50)" json:"transaction_status"`
	DateCompleted       *time.Time     `json:"date_completed"`
	ExpiredAt           *time.Time     `gorm:"index" json:"expired_at"`

	AuditFields
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

// Resolved reports whether a webhook has settled the payment
func (p *Payment) Resolved() bool {
	return p.TransactionStatus != nil && *p.TransactionStatus != ""
}
