package geo

import "math"

// BoundingBox is a lat/lng rectangle that encloses a search circle.
// AnyLongitude is set when the circle reaches a pole or crosses the
// antimeridian, in which case only the latitude band applies.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	AnyLongitude   bool
}

// BoundingBoxFor returns the box around center for radiusKm. It is a coarse
// prefilter; DistanceKm stays authoritative.
func BoundingBoxFor(center Coordinates, radiusKm float64) BoundingBox {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi

	box := BoundingBox{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.AnyLongitude = true
		return box
	}

	// widest longitude reach of the circle, which is slightly larger than
	// the parallel-arc approximation r/cos(lat)
	ratio := math.Sin(radiusKm/EarthRadiusKm) / math.Cos(toRadians(center.Lat))
	if ratio >= 1 {
		box.AnyLongitude = true
		return box
	}
	dLng := math.Asin(ratio) * 180 / math.Pi

	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	if box.MinLng < -180 || box.MaxLng > 180 {
		box.AnyLongitude = true
	}
	return box
}

// Contains reports whether c lies inside the box
func (b BoundingBox) Contains(c Coordinates) bool {
	if c.Lat < b.MinLat || c.Lat > b.MaxLat {
		return false
	}
	if b.AnyLongitude {
		return true
	}
	return c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}
