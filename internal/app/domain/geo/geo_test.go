package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

type place struct {
	name string
	loc  models.Point
}

func (p place) Point() models.Point { return p.loc }

func TestHaversine(t *testing.T) {
	origin := models.Point{Longitude: 0, Latitude: 0}

	tests := []struct {
		name     string
		to       models.Point
		expected float64
	}{
		{name: "one degree of longitude on the equator", to: models.Point{Longitude: 1, Latitude: 0}, expected: 111.32},
		{name: "one degree of latitude", to: models.Point{Longitude: 0, Latitude: 1}, expected: 111.32},
		{name: "same point", to: origin, expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Haversine(origin, tc.to)
			assert.InDelta(t, tc.expected, got, 0.2)
		})
	}
}

func TestHaversineAntipodalIsFinite(t *testing.T) {
	halfCircumference := math.Pi * EarthRadiusKm

	pairs := [][2]models.Point{
		{{Longitude: -179, Latitude: -86.78}, {Longitude: 1, Latitude: 86.78}},
		{{Longitude: 0, Latitude: 0}, {Longitude: 180, Latitude: 0}},
		{{Longitude: 0, Latitude: 90}, {Longitude: 0, Latitude: -90}},
	}
	for _, p := range pairs {
		d := Haversine(p[0], p[1])
		assert.False(t, math.IsNaN(d), "%v -> %v", p[0], p[1])
		assert.InDelta(t, halfCircumference, d, 0.01)
	}

	// sweep a band of antipodal pairs, where rounding pushes the
	// intermediate term past 1
	for lat := -89.9; lat < 90; lat += 0.37 {
		for lon := -179.0; lon <= 0; lon += 1.3 {
			d := Haversine(models.Point{Longitude: lon, Latitude: lat}, models.Point{Longitude: lon + 180, Latitude: -lat})
			require.False(t, math.IsNaN(d), "lon=%v lat=%v", lon, lat)
			require.InDelta(t, halfCircumference, d, 0.01)
		}
	}
}

func TestHaversineSymmetric(t *testing.T) {
	lisbon := models.Point{Longitude: -9.1393, Latitude: 38.7223}
	porto := models.Point{Longitude: -8.6291, Latitude: 41.1579}

	assert.InDelta(t, Haversine(lisbon, porto), Haversine(porto, lisbon), 1e-9)
	assert.InDelta(t, 274, Haversine(lisbon, porto), 2)
}

func TestWithinRadiusBoundaryIsInclusive(t *testing.T) {
	center := models.Point{Longitude: 0, Latitude: 0}
	edge := place{name: "edge", loc: models.Point{Longitude: 1, Latitude: 0}}
	radius := Haversine(center, edge.loc)

	hits := WithinRadius([]place{edge}, center, radius)
	require.Len(t, hits, 1)
	assert.Equal(t, "edge", hits[0].Item.name)
	assert.InDelta(t, radius, hits[0].DistanceKm, 1e-12)

	hits = WithinRadius([]place{edge}, center, radius-1e-9)
	assert.Empty(t, hits)
}

func TestWithinRadiusFilters(t *testing.T) {
	center := models.Point{Longitude: 12.0, Latitude: 51.0}
	points := []place{
		{name: "near", loc: models.Point{Longitude: 12.01, Latitude: 51.005}},
		{name: "far", loc: models.Point{Longitude: 13.0, Latitude: 52.0}},
		{name: "centre", loc: center},
	}

	hits := WithinRadius(points, center, 5)

	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Item.name)
	assert.Equal(t, "centre", hits[1].Item.name)
	assert.Zero(t, hits[1].DistanceKm)
}

func TestOrderByDistance(t *testing.T) {
	center := models.Point{Longitude: 0, Latitude: 0}
	points := []place{
		{name: "c", loc: models.Point{Longitude: 3, Latitude: 0}},
		{name: "a", loc: models.Point{Longitude: 1, Latitude: 0}},
		{name: "b", loc: models.Point{Longitude: 0, Latitude: 2}},
	}

	hits := OrderByDistance(points, center)

	require.Len(t, hits, 3)
	names := []string{hits[0].Item.name, hits[1].Item.name, hits[2].Item.name}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.LessOrEqual(t, hits[0].DistanceKm, hits[1].DistanceKm)
	assert.LessOrEqual(t, hits[1].DistanceKm, hits[2].DistanceKm)
}

func TestOrderByDistanceEmpty(t *testing.T) {
	assert.Empty(t, OrderByDistance([]place{}, models.Point{}))
}
