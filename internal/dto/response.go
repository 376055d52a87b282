package dto

import (
	"fmt"
	"time"

	"github.com/stillpoint-yoga/studio/internal/models"
)

type BookingResponse struct {
	ID               uint                 `json:"id"`
	ClassID          uint                 `json:"class_id"`
	Date             string               `json:"date"`
	UserID           string               `json:"user_id"`
	Status           models.BookingStatus `json:"status"`
	WaitlistPosition *int                 `json:"waitlist_position,omitempty"`
	BookedAt         time.Time            `json:"booked_at"`
	CreatedAt        time.Time            `json:"created_at"`
	Message          string               `json:"message"`
}

type ClassResponse struct {
	ID              uint              `json:"id"`
	Name            string            `json:"name"`
	Instructor      string            `json:"instructor"`
	Description     string            `json:"description"`
	Location        string            `json:"location"`
	StartsAt        time.Time         `json:"starts_at"`
	DurationMinutes int               `json:"duration_minutes"`
	Capacity        int               `json:"capacity"`
	Recurrence      models.Recurrence `json:"recurrence"`
	RecursUntil     *time.Time        `json:"recurs_until,omitempty"`
	Active          bool              `json:"active"`
	ImageURLs       []string          `json:"image_urls,omitempty"`
}

type OccurrencesResponse struct {
	ClassID uint     `json:"class_id"`
	Dates   []string `json:"dates"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ToBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		ClassID:          b.ClassID,
		Date:             b.DateKey(),
		UserID:           b.UserID,
		Status:           b.Status,
		WaitlistPosition: b.WaitlistPosition,
		BookedAt:         b.BookedAt,
		CreatedAt:        b.CreatedAt,
		Message:          StatusMessage(b),
	}
}

// StatusMessage is the human readable summary shown to the member.
func StatusMessage(b *models.Booking) string {
	switch b.Status {
	case models.StatusConfirmed:
		return "Your spot is confirmed."
	case models.StatusWaitlisted:
		if b.WaitlistPosition != nil {
			return fmt.Sprintf("Class is full. You are number %d on the waitlist.", *b.WaitlistPosition)
		}
		return "Class is full. You are on the waitlist."
	case models.StatusCancelled:
		return "Your booking has been cancelled."
	case models.StatusAttended:
		return "Attendance recorded."
	case models.StatusNoShow:
		return "Marked as no-show."
	}
	return ""
}

func ToClassResponse(c *models.ClassSchedule, imageURLs []string) ClassResponse {
	return ClassResponse{
		ID:              c.ID,
		Name:            c.Name,
		Instructor:      c.Instructor,
		Description:     c.Description,
		Location:        c.Location,
		StartsAt:        c.StartsAt,
		DurationMinutes: c.DurationMinutes,
		Capacity:        c.Capacity,
		Recurrence:      c.Recurrence,
		RecursUntil:     c.RecursUntil,
		Active:          c.Active,
		ImageURLs:       imageURLs,
	}
}
