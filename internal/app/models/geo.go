package models

import (
	"encoding/json"
	"fmt"
)

// Point is a WGS84 coordinate. Longitude comes first everywhere, matching
// the GeoJSON ordering used on the wire.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Valid reports whether the point lies inside the lon/lat ranges.
func (p Point) Valid() bool {
	return p.Longitude >= -180 && p.Longitude <= 180 && p.Latitude >= -90 && p.Latitude <= 90
}

// NewPoint builds a Point and rejects out-of-range coordinates.
func NewPoint(lon, lat float64) (Point, error) {
	p := Point{Longitude: lon, Latitude: lat}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: lon=%f lat=%f", ErrInvalidGeometry, lon, lat)
	}
	return p, nil
}

type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var g geoJSONPoint
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if g.Type != "Point" || len(g.Coordinates) != 2 {
		return fmt.Errorf("%w: expected {type: Point, coordinates: [lon, lat]}", ErrInvalidGeometry)
	}
	pt, err := NewPoint(g.Coordinates[0], g.Coordinates[1])
	if err != nil {
		return err
	}
	*p = pt
	return nil
}
