package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"venus_app_echo/internal/geo"
	"venus_app_echo/internal/matching"
	"venus_app_echo/internal/models"
)

// ProfileService manages locations and the map view
type ProfileService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProfileService creates a new ProfileService
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db, now: time.Now}
}

// UpdateLocation stores validated "lat,lng" text on a profile the actor owns
func (s *ProfileService) UpdateLocation(ctx context.Context, actor *models.User, profileID uuid.UUID, coordinates string) error {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "profile_id = ?", profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if profile.UserID != actor.ID {
		return ErrForbidden
	}

	point, ok := geo.ParseCoordinates(coordinates)
	if !ok {
		return ErrInvalidCoordinates
	}

	err := s.db.WithContext(ctx).Model(&profile).Updates(map[string]interface{}{
		"current_coordinates": coordinates,
		"latitude":            point.Lat,
		"longitude":           point.Lng,
		"updated_by":          models.ActorUser(actor.ID),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	return nil
}

// MapProfiles returns the users that qualify for the actor's map. A caller
// without a profile or without coordinates gets an empty list.
func (s *ProfileService) MapProfiles(ctx context.Context, actor *models.User) ([]models.User, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", actor.ID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []models.User{}, nil
	}
	if err != nil {
		return nil, err
	}

	origin, ok := geo.ParseCoordinates(profile.Coordinates())
	if !ok {
		return []models.User{}, nil
	}
	window := profile.SearchWindow()

	query := s.db.WithContext(ctx).
		Joins("JOIN profiles ON profiles.user_id = users.user_id").
		Where("profiles.gender <> ?", profile.Gender).
		Where("profiles.online = ?", true).
		Where("profiles.user_id <> ?", actor.ID).
		Where("profiles.active = ? AND users.active = ?", true, true)

	box := geo.BoundingBoxFor(origin, window.DistanceKm)
	query = query.Where("profiles.latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if !box.AnyLongitude {
		query = query.Where("profiles.longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	var pool []models.User
	if err := query.Preload("Profile").Find(&pool).Error; err != nil {
		return nil, fmt.Errorf("failed to load map candidates: %w", err)
	}

	requester := matching.Requester{
		UserID:      actor.ID.String(),
		Gender:      string(profile.Gender),
		Coordinates: profile.Coordinates(),
	}
	result := matching.Filter(requester, window, pool, candidateView, s.now().UTC())

	log.Debug().
		Str("user_id", actor.ID.String()).
		Int("pool", len(pool)).
		Int("matches", len(result)).
		Msg("Map profiles resolved")
	return result, nil
}

func candidateView(u models.User) matching.Candidate {
	c := matching.Candidate{
		UserID:     u.ID.String(),
		UserActive: u.Active,
	}
	if u.Profile != nil {
		c.Gender = string(u.Profile.Gender)
		c.Online = u.Profile.Online
		c.ProfileActive = u.Profile.Active
		c.Coordinates = u.Profile.Coordinates()
		c.DateOfBirth = u.Profile.DateOfBirth
	}
	return c
}
