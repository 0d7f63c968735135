package models

import (
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who created or last touched a record. Records created
// during registration carry an email; authenticated actions carry a user id.
type ActorRef string

// ActorSystem attributes writes made by background tasks
const ActorSystem ActorRef = "system"

// ActorEmail is the attribution used before a user id exists
func ActorEmail(email string) ActorRef {
	return ActorRef(email)
}

// ActorUser is the attribution for an authenticated principal
func ActorUser(id uuid.UUID) ActorRef {
	return ActorRef(id.String())
}

// AuditFields are the bookkeeping columns shared by every entity
type AuditFields struct {
	DateCreated time.Time              `gorm:"autoCreateTime" json:"date_created"`
	DateUpdated time.Time              `gorm:"autoUpdateTime" json:"date_updated"`
	CreatedBy   ActorRef               `gorm:"type:varchar(255);not null" json:"created_by"`
	UpdatedBy   ActorRef               `gorm:"type:varchar(255);not null" json:"updated_by"`
	Active      bool                   `gorm:"not null;default:true;index" json:"active"`
	Meta        map[string]interface{} `gorm:"serializer:json" json:"meta"`
}

// NewAuditFields returns an active record attributed to actor
func NewAuditFields(actor ActorRef) AuditFields {
	return AuditFields{
		CreatedBy: actor,
		UpdatedBy: actor,
		Active:    true,
		Meta:      map[string]interface{}{},
	}
}

// Touch records actor as the last writer
func (a *AuditFields) Touch(actor ActorRef) {
	a.UpdatedBy = actor
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
