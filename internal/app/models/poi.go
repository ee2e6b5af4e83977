package models

import (
	"time"

	"github.com/google/uuid"
)

type PointOfInterest struct {
	ID           uuid.UUID        `json:"id"`
	Location     Point            `json:"location"`
	Name         string           `json:"name"`
	OperatorID   uuid.UUID        `json:"operator"`
	Translations []POITranslation `json:"translations,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type POITranslation struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

// TranslationInput is the payload for one language when creating translations.
type TranslationInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CreatePOIParams struct {
	OperatorID   uuid.UUID
	Name         string
	Location     Point
	Translations map[string]TranslationInput
}

// POIPatch lists every field a partial update may touch. Nil means unchanged.
type POIPatch struct {
	Name     *string `json:"name,omitempty"`
	Location *Point  `json:"location,omitempty"`
}

func (p POIPatch) Empty() bool {
	return p.Name == nil && p.Location == nil
}

// LocalizedPOI is a POI rendered for one language.
type LocalizedPOI struct {
	PointOfInterest
	LanguageCode string `json:"language_code"`
	Description  string `json:"description"`
}

// POIWithDistance annotates a search hit with its great-circle distance in km
// from the query centre and its average rating (nil when unreviewed).
type POIWithDistance struct {
	PointOfInterest
	DistanceKm float64  `json:"distance_km"`
	AvgRating  *float64 `json:"avg_rating"`
}

type POIWithRating struct {
	PointOfInterest
	AvgRating   *float64 `json:"avg_rating"`
	ReviewCount int      `json:"review_count"`
}

type POIFilter struct {
	Center   Point
	RadiusKm float64
	Limit    int
}

// Point exposes the POI's location for distance computations.
func (p PointOfInterest) Point() Point {
	return p.Location
}

type POIPage struct {
	Items    []PointOfInterest `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int               `json:"total"`
}
