package models

import (
	"time"

	"github.com/google/uuid"
)

// AttractionSchedule is a bookable window with a finite seat capacity.
// 0 <= RemainingCapacity <= TotalCapacity always holds.
type AttractionSchedule struct {
	ID                uuid.UUID `json:"id"`
	POIID             uuid.UUID `json:"poi"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	TotalCapacity     int       `json:"total_capacity"`
	RemainingCapacity int       `json:"remaining_capacity"`
	IsActive          bool      `json:"is_active"`
}

type CreateScheduleParams struct {
	POIID             uuid.UUID
	Start             time.Time
	End               time.Time
	TotalCapacity     int
	RemainingCapacity *int
	IsActive          *bool
}

// SchedulePatch lists the schedule fields that may change after creation.
// Capacity is owned by the booking ledger and is not patchable.
type SchedulePatch struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

func (p SchedulePatch) Empty() bool {
	return p.Start == nil && p.End == nil && p.IsActive == nil
}
