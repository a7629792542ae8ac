package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DistanceMeters_Zero_For_Same_Point(t *testing.T) {
	require.InDelta(t, 0, DistanceMeters(40.0, -105.0, 40.0, -105.0), 1e-9)
}

func Test_DistanceMeters_One_Degree_Of_Latitude(t *testing.T) {
	d := DistanceMeters(0, 0, 1, 0)

	require.InDelta(t, 111_195, d, 5)
}

func Test_DistanceMeters_Known_City_Pair(t *testing.T) {
	// Boulder, CO to Denver, CO is roughly 39 km.
	d := DistanceMeters(40.0150, -105.2705, 39.7392, -104.9903)

	require.InDelta(t, 38_500, d, 1_500)
}

func Test_BoundingBox_Contains_Circle(t *testing.T) {
	// Arrange
	lat, lon, radius := 47.6, -122.3, 5_000.0
	box := BoundingBox(lat, lon, radius)

	// Act & Assert: sample the circle's edge.
	for deg := 0; deg < 360; deg += 5 {
		b := float64(deg) * math.Pi / 180
		pLat, pLon := destination(lat, lon, b, radius*0.999)
		require.True(t, box.Contains(pLat, pLon), "bearing %d: (%f, %f) outside %+v", deg, pLat, pLon, box)
	}
}

func Test_BoundingBox_Widens_Longitude_With_Latitude(t *testing.T) {
	equator := BoundingBox(0, 0, 1_000)
	north := BoundingBox(60, 0, 1_000)

	require.Greater(t, north.MaxLon-north.MinLon, equator.MaxLon-equator.MinLon)
	require.InDelta(t, equator.MaxLat-equator.MinLat, north.MaxLat-north.MinLat, 1e-9)
}

func Test_BoundingBox_Polar_Falls_Back_To_Full_Longitude(t *testing.T) {
	box := BoundingBox(90, 10, 1_000)

	require.Equal(t, -180.0, box.MinLon)
	require.Equal(t, 180.0, box.MaxLon)
	require.Equal(t, 90.0, box.MaxLat)
}

func Test_BoundingBox_Antimeridian_Falls_Back_To_Full_Longitude(t *testing.T) {
	box := BoundingBox(0, 179.999, 5_000)

	require.Equal(t, -180.0, box.MinLon)
	require.Equal(t, 180.0, box.MaxLon)
}

// destination walks distance meters from (lat, lon) along bearing (radians).
func destination(lat, lon, bearing, distance float64) (float64, float64) {
	d := distance / earthRadiusMeters
	φ1 := toRadians(lat)
	λ1 := toRadians(lon)
	φ2 := math.Asin(math.Sin(φ1)*math.Cos(d) + math.Cos(φ1)*math.Sin(d)*math.Cos(bearing))
	λ2 := λ1 + math.Atan2(math.Sin(bearing)*math.Sin(d)*math.Cos(φ1), math.Cos(d)-math.Sin(φ1)*math.Sin(φ2))
	return toDegrees(φ2), toDegrees(λ2)
}
