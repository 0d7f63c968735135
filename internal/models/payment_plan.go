package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanKind names a subscription tier
type PlanKind string

const (
	PlanMonthly    PlanKind = "MONTHLY"
	PlanSemiAnnual PlanKind = "SEMI_ANNUAL"
	PlanAnnual     PlanKind = "ANNUAL"
	PlanVIP        PlanKind = "VIP"
	PlanTest       PlanKind = "TEST"
)

// Valid reports whether k is a known tier
func (k PlanKind) Valid() bool {
	switch k {
	case PlanMonthly, PlanSemiAnnual, PlanAnnual, PlanVIP, PlanTest:
		return true
	}
	return false
}

// PaymentPlan is a priced subscription tier valid for Months calendar months
type PaymentPlan struct {
	ID     uuid.UUID `gorm:"column:plan_id;type:uuid;primaryKey" json:"plan_id"`
	Plan   PlanKind  `gorm:"type:varchar(20);not null" json:"plan"`
	Amount float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Months int       `gorm:"not null" json:"months"`

	AuditFields
}

func (p *PaymentPlan) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
