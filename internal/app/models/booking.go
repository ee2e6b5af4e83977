package models

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking holds Seats against its schedule's remaining capacity until it is
// cancelled.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user"`
	ItineraryItemID uuid.UUID     `json:"itinerary_item_id"`
	ScheduleID      uuid.UUID     `json:"schedule_id"`
	Seats           int           `json:"seats"`
	Status          BookingStatus `json:"status"`
	PaymentRef      *string       `json:"payment_ref"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (b Booking) Active() bool {
	return b.Status != BookingStatusCancelled
}

type ReserveParams struct {
	UserID          uuid.UUID
	ItineraryItemID uuid.UUID
	ScheduleID      uuid.UUID
	Seats           int
}

// BookableItem is the itinerary item a reservation is made for, with the
// itinerary owner and the POI the item visits.
type BookableItem struct {
	ID          uuid.UUID
	ItineraryID uuid.UUID
	OwnerID     uuid.UUID
	POIID       uuid.UUID
}

// ItemScope selects itinerary items whose bookings are released before the
// items are deleted: a single item when ItemID is set, otherwise every item
// of ItineraryID.
type ItemScope struct {
	ItineraryID uuid.UUID
	ItemID      uuid.UUID
}
