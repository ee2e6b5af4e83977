package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is unique per (user, POI); resubmitting overwrites rating and text.
type Review struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user"`
	POIID     uuid.UUID `json:"poi"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingSummary struct {
	POIID       uuid.UUID `json:"poi"`
	AvgRating   *float64  `json:"avg_rating"`
	ReviewCount int       `json:"review_count"`
}
