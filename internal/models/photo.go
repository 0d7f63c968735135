package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Photo is an uploaded user image stored in object storage
type Photo struct {
	ID       uuid.UUID `gorm:"column:photo_id;type:uuid;primaryKey" json:"photo_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	PhotoURL string    `gorm:"type:text;not null" json:"photo_url"`
	Verified bool      `gorm:"not null;default:false" json:"verified"`

	AuditFields
}

func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
