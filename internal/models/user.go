package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the account/identity record
type User struct {
	ID             uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FirstName      string    `gorm:"type:varchar(255)" json:"first_name"`
	LastName       string    `gorm:"type:varchar(255)" json:"last_name"`
	AvatarURL      *string   `gorm:"type:text" json:"avatar_url"`
	FCMToken       *string   `gorm:"column:fcm_token;type:text" json:"-"`
	HashedPassword string    `gorm:"type:varchar(255);not null" json:"-"`

	AuditFields

	// Relationships
	Profile *Profile `gorm:"foreignKey:UserID;references:ID" json:"profile,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	return nil
}

// PushToken returns the registered FCM token or "" when none is set
func (u *User) PushToken() string {
	if u == nil || u.FCMToken == nil {
		return ""
	}
	return *u.FCMToken
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
