package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm
const EarthRadiusKm = 6371.0

// Coordinates is a validated latitude/longitude pair in degrees
type Coordinates struct {
	Lat float64
	Lng float64
}

// String renders the pair in the "lat,lng" storage form
func (c Coordinates) String() string {
	return fmt.Sprintf("%s,%s",
		strconv.FormatFloat(c.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Lng, 'f', -1, 64))
}

// ParseCoordinates parses "lat,lng". ok is false for empty input, a token
// count other than two, non-numeric tokens or out-of-range values.
func ParseCoordinates(text string) (Coordinates, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Coordinates{}, false
	}

	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return Coordinates{}, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinates{}, false
	}

	// ParseFloat accepts "NaN" and "Inf", which the range checks must reject
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Coordinates{}, false
	}

	return Coordinates{Lat: lat, Lng: lng}, true
}

// DistanceKm returns the great-circle distance between a and b (haversine)
func DistanceKm(a, b Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng) - toRadians(a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)

	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// AgeYears returns the age in whole years on the given day. A nil birth
// date yields 0, which callers must read as "unknown".
func AgeYears(birth *time.Time, today time.Time) int {
	if birth == nil {
		return 0
	}

	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() ||
		(today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
