// Package geo holds the great-circle math used by POI search and trip
// statistics. Everything here is pure and safe for concurrent use.
package geo

import (
	"math"
	"sort"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between p1 and p2 in kilometres.
func Haversine(p1, p2 models.Point) float64 {
	phi1 := toRadians(p1.Latitude)
	phi2 := toRadians(p2.Latitude)
	dPhi := toRadians(p2.Latitude - p1.Latitude)
	dLambda := toRadians(p2.Longitude - p1.Longitude)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can leave a just outside [0, 1] for antipodal points.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Located is anything with a position.
type Located interface {
	Point() models.Point
}

// Hit pairs an element with its distance from a query centre.
type Hit[T Located] struct {
	Item       T
	DistanceKm float64
}

// WithinRadius keeps the points whose distance from center is <= radiusKm.
// The boundary is inclusive. Input order is preserved.
func WithinRadius[T Located](points []T, center models.Point, radiusKm float64) []Hit[T] {
	hits := make([]Hit[T], 0, len(points))
	for _, p := range points {
		d := Haversine(center, p.Point())
		if d <= radiusKm {
			hits = append(hits, Hit[T]{Item: p, DistanceKm: d})
		}
	}
	return hits
}

// OrderByDistance annotates every point with its distance from center and
// sorts ascending. Ties keep their input order.
func OrderByDistance[T Located](points []T, center models.Point) []Hit[T] {
	hits := make([]Hit[T], len(points))
	for i, p := range points {
		hits[i] = Hit[T]{Item: p, DistanceKm: Haversine(center, p.Point())}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].DistanceKm < hits[j].DistanceKm
	})
	return hits
}

// BoundingRadiusMeters widens a km radius for a coarse database prefilter.
// PostGIS measures on a slightly different sphere, so candidates right at
// the edge must not be dropped before Haversine decides.
func BoundingRadiusMeters(radiusKm float64) float64 {
	return radiusKm*1000*1.01 + 1
}
