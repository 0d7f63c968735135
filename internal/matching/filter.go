// Package matching selects map candidates for a requesting profile.
package matching

import (
	"time"

	"venus_app_echo/internal/geo"
)

// Default search window applied when a profile has no stored preferences
const (
	DefaultMinAge     = 18
	DefaultMaxAge     = 99
	DefaultDistanceKm = 50.0
)

// Window is a resolved preference window
type Window struct {
	MinAge     int
	MaxAge     int
	DistanceKm float64
}

// DefaultWindow returns the window used when no preferences are stored
func DefaultWindow() Window {
	return Window{MinAge: DefaultMinAge, MaxAge: DefaultMaxAge, DistanceKm: DefaultDistanceKm}
}

// Requester describes the profile asking for the map
type Requester struct {
	UserID      string
	Gender      string
	Coordinates string
}

// Candidate is the projection of a pool entry the filter needs
type Candidate struct {
	UserID        string
	Gender        string
	Online        bool
	ProfileActive bool
	UserActive    bool
	Coordinates   string
	DateOfBirth   *time.Time
}

// Filter returns the entries of pool that qualify for requester under w.
// All conditions are applied here even if the pool was narrowed upstream.
// Output order follows pool order but callers must not depend on it.
func Filter[T any](requester Requester, w Window, pool []T, view func(T) Candidate, today time.Time) []T {
	origin, ok := geo.ParseCoordinates(requester.Coordinates)
	if !ok {
		return []T{}
	}

	result := make([]T, 0, len(pool))
	for _, entry := range pool {
		if Qualifies(requester, origin, w, view(entry), today) {
			result = append(result, entry)
		}
	}
	return result
}

// Qualifies applies the policy to a single candidate
func Qualifies(requester Requester, origin geo.Coordinates, w Window, c Candidate, today time.Time) bool {
	if c.Gender == requester.Gender {
		return false
	}
	if !c.Online {
		return false
	}
	if c.UserID == requester.UserID {
		return false
	}
	if !c.ProfileActive || !c.UserActive {
		return false
	}

	position, ok := geo.ParseCoordinates(c.Coordinates)
	if !ok {
		return false
	}
	if geo.DistanceKm(origin, position) > w.DistanceKm {
		return false
	}

	age := geo.AgeYears(c.DateOfBirth, today)
	return age >= w.MinAge && age <= w.MaxAge
}
