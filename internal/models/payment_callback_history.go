package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentGateway string

const (
	PaymentGatewayMpesa PaymentGateway = "mpesa"
)

// PaymentCallbackHistory keeps every inbound gateway delivery verbatim
type PaymentCallbackHistory struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	PaymentGateway    PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	CheckoutRequestID string         `gorm:"type:varchar(255);index" json:"checkout_request_id"`
	ResultCode        *int           `json:"result_code"`
	Outcome           string         `gorm:"type:varchar(50)" json:"outcome"`
	Metadata          datatypes.JSON `json:"metadata"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
