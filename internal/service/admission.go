package service

import (
	"sort"

	"github.com/stillpoint-yoga/studio/internal/models"
)

// Admission is the outcome of a booking request against an occurrence.
type Admission struct {
	Status           models.BookingStatus
	WaitlistPosition *int
}

// Admit decides whether a request is seated or waitlisted given the class capacity,
// the number of seats already held and the last position on the waitlist (0 when empty).
// Positions are not compacted, so the new position follows the last one held.
func Admit(capacity int, seated, lastPosition int64) Admission {
	if seated < int64(capacity) {
		return Admission{Status: models.StatusConfirmed}
	}
	pos := int(lastPosition) + 1
	return Admission{Status: models.StatusWaitlisted, WaitlistPosition: &pos}
}

// OrderRoster sorts bookings seat holders first by booking time, then the waitlist by position.
func OrderRoster(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		aw, bw := a.Status == models.StatusWaitlisted, b.Status == models.StatusWaitlisted
		if aw != bw {
			return !aw
		}
		if aw && a.WaitlistPosition != nil && b.WaitlistPosition != nil && *a.WaitlistPosition != *b.WaitlistPosition {
			return *a.WaitlistPosition < *b.WaitlistPosition
		}
		if !a.BookedAt.Equal(b.BookedAt) {
			return a.BookedAt.Before(b.BookedAt)
		}
		return a.ID < b.ID
	})
}

// canTransition reports whether an explicit status update from -> to is allowed.
func canTransition(from, to models.BookingStatus) bool {
	switch to {
	case models.StatusCancelled:
		return from == models.StatusConfirmed || from == models.StatusWaitlisted || from == models.StatusCancelled
	case models.StatusAttended, models.StatusNoShow:
		return from == models.StatusConfirmed
	}
	return false
}
