package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is an offset from midnight. Itinerary slots are wall-clock times
// on a given date, so they carry no zone.
type TimeOfDay time.Duration

const day = TimeOfDay(24 * time.Hour)

// Clock builds a TimeOfDay from hours and minutes.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t < day }

func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) }

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day. The time part is always midnight UTC.
type Date struct {
	time.Time
}

const DateLayout = "2006-01-02"

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return DateOf(t), nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
