package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"venus_app_echo/internal/matching"
)

// Gender is stored as its string value
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Valid reports whether g is one of the known values
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Preferences is the stored search window. Any nil field falls back to the
// matching defaults.
type Preferences struct {
	MinAge   *int     `json:"min_age,omitempty"`
	MaxAge   *int     `json:"max_age,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
}

// Profile holds the dating-relevant attributes of a user
type Profile struct {
	ID                 uuid.UUID    `gorm:"column:profile_id;type:uuid;primaryKey" json:"profile_id"`
	UserID             uuid.UUID    `gorm:"type:uuid;uniqueIndex:uq_profile_user_id;not null" json:"user_id"`
	PhoneNumber        string       `gorm:"type:varchar(50);uniqueIndex:uq_profile_phone_number;not null" json:"phone_number"`
	Gender             Gender       `gorm:"type:varchar(10);not null;index" json:"gender"`
	DateOfBirth        *time.Time   `gorm:"type:date" json:"date_of_birth"`
	Bio                string       `gorm:"type:text" json:"bio"`
	Online             bool         `gorm:"not null;default:true" json:"online"`
	CurrentCoordinates *string      `gorm:"type:varchar(64)" json:"current_coordinates"`
	Latitude           *float64     `gorm:"index:idx_profiles_lat_lng,priority:1" json:"-"`
	Longitude          *float64     `gorm:"index:idx_profiles_lat_lng,priority:2" json:"-"`
	Preferences        *Preferences `gorm:"serializer:json" json:"preferences"`

	AuditFields
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

// SearchWindow resolves the stored preferences against the defaults, key by key
func (p *Profile) SearchWindow() matching.Window {
	w := matching.DefaultWindow()
	if p.Preferences == nil {
		return w
	}
	if p.Preferences.MinAge != nil {
		w.MinAge = *p.Preferences.MinAge
	}
	if p.Preferences.MaxAge != nil {
		w.MaxAge = *p.Preferences.MaxAge
	}
	if p.Preferences.Distance != nil {
		w.DistanceKm = *p.Preferences.Distance
	}
	return w
}

// Coordinates returns the stored "lat,lng" text or ""
func (p *Profile) Coordinates() string {
	if p == nil || p.CurrentCoordinates == nil {
		return ""
	}
	return *p.CurrentCoordinates
}
