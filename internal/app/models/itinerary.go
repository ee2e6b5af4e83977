package models

import (
	"time"

	"github.com/google/uuid"
)

type Itinerary struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user"`
	Name      string          `json:"name"`
	Items     []ItineraryItem `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ItineraryItem is one planned visit. For a fixed itinerary and date the
// [StartTime, EndTime) intervals never overlap and Order is unique.
type ItineraryItem struct {
	ID          uuid.UUID `json:"id"`
	ItineraryID uuid.UUID `json:"itinerary"`
	POIID       uuid.UUID `json:"poi_id"`
	Date        Date      `json:"date"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Order       int       `json:"order"`
}

// Overlaps uses half-open intervals: touching boundaries do not overlap.
func (i ItineraryItem) Overlaps(start, end TimeOfDay) bool {
	return i.StartTime < end && i.EndTime > start
}

type AddItemParams struct {
	ItineraryID uuid.UUID
	POIID       uuid.UUID
	Date        Date
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	Order       *int
}

// StopWithLocation is an itinerary item joined with its POI's coordinates,
// the input to trip statistics.
type StopWithLocation struct {
	ItemID   uuid.UUID
	Date     Date
	Order    int
	Location Point
}

type DailyOccupancy struct {
	Date      string `json:"date"`
	Occupancy int    `json:"occupancy"`
}

type ItineraryStats struct {
	TotalWalkKm    float64          `json:"total_walk_km"`
	DailyOccupancy []DailyOccupancy `json:"daily_occupancy"`
}
