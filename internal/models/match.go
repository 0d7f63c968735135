package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Match is a directed thread record keyed by (my_id, partner_id, thread_id)
type Match struct {
	ID              uuid.UUID  `gorm:"column:match_id;type:uuid;primaryKey" json:"match_id"`
	MyID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_match_my_partner_thread,priority:1;index" json:"my_id"`
	PartnerID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_match_my_partner_thread,priority:2;index" json:"partner_id"`
	ThreadID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_match_my_partner_thread,priority:3" json:"thread_id"`
	LastMessage     *string    `gorm:"type:text" json:"last_message"`
	LastMessageDate *time.Time `json:"last_message_date"`
	SentBy          *uuid.UUID `gorm:"type:uuid;index" json:"sent_by"`

	AuditFields
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	newID(&m.ID)
	return nil
}
