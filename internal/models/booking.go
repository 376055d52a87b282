package models

import (
	"time"

	"gorm.io/datatypes"
)

type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "confirmed"
	StatusWaitlisted BookingStatus = "waitlisted"
	StatusCancelled  BookingStatus = "cancelled"
	StatusAttended   BookingStatus = "attended"
	StatusNoShow     BookingStatus = "no-show"
)

// DateLayout is the wire and query format of a class occurrence date.
const DateLayout = "2006-01-02"

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusWaitlisted, StatusCancelled, StatusAttended, StatusNoShow:
		return true
	}
	return false
}

// HoldsSeat reports whether a booking in this status counts against class capacity.
func (s BookingStatus) HoldsSeat() bool {
	return s == StatusConfirmed || s == StatusAttended || s == StatusNoShow
}

// SeatStatuses lists the statuses counted as occupied seats.
var SeatStatuses = []BookingStatus{StatusConfirmed, StatusAttended, StatusNoShow}

type Booking struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ClassID          uint           `gorm:"not null;index:idx_booking_occurrence" json:"class_id"`
	ClassDate        datatypes.Date `gorm:"not null;index:idx_booking_occurrence" json:"class_date"`
	UserID           string         `gorm:"not null;index" json:"user_id"`
	Status           BookingStatus  `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`
	WaitlistPosition *int           `json:"waitlist_position,omitempty"`
	BookedAt         time.Time      `gorm:"not null" json:"booked_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	Class *ClassSchedule `gorm:"foreignKey:ClassID" json:"class,omitempty"`
}

// DateKey returns the occurrence date in DateLayout.
func (b *Booking) DateKey() string {
	return time.Time(b.ClassDate).Format(DateLayout)
}

// Occupancy is the seat summary of a single class occurrence.
type Occupancy struct {
	ClassID        uint   `json:"class_id"`
	Date           string `json:"date"`
	Capacity       int    `json:"capacity"`
	Confirmed      int64  `json:"confirmed_count"`
	Waitlisted     int64  `json:"waitlisted_count"`
	SeatsAvailable int    `json:"seats_available"`
}
