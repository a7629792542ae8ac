package core

import "math"

const (
	earthRadiusMeters = 6_371_000.0
	polarCosEpsilon   = 1e-6
)

// metersPerDegree along a meridian, consistent with DistanceMeters.
var metersPerDegree = earthRadiusMeters * math.Pi / 180

// Box is a lat/lon rectangle used as a cheap pre-filter.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// DistanceMeters is the haversine great-circle distance.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// BoundingBox returns a rectangle that contains every point within
// radiusMeters of (lat, lon). The longitude half-width is the angular radius
// corrected by cos(lat); when the circle reaches a pole or crosses the
// antimeridian the longitude range is the whole globe.
func BoundingBox(lat, lon, radiusMeters float64) Box {
	dLat := radiusMeters / metersPerDegree
	b := Box{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}

	cos := math.Cos(toRadians(lat))
	if math.Abs(cos) < polarCosEpsilon {
		return b
	}
	ratio := math.Sin(radiusMeters/earthRadiusMeters) / cos
	if ratio >= 1 {
		return b
	}
	dLon := toDegrees(math.Asin(ratio))
	if lon-dLon < -180 || lon+dLon > 180 {
		return b
	}
	b.MinLon = lon - dLon
	b.MaxLon = lon + dLon
	return b
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
