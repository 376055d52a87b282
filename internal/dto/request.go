package dto

import (
	"time"

	"github.com/stillpoint-yoga/studio/internal/models"
)

type BookClassRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type UpdateBookingRequest struct {
	Status models.BookingStatus `json:"status" validate:"required,oneof=cancelled attended no-show"`
}

type ClassRequest struct {
	Name            string     `json:"name" validate:"required"`
	Instructor      string     `json:"instructor" validate:"required"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	StartsAt        time.Time  `json:"starts_at" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,gt=0"`
	Capacity        int        `json:"capacity" validate:"required,gt=0"`
	Recurrence      string     `json:"recurrence" validate:"omitempty,oneof=none weekly"`
	RecursUntil     *time.Time `json:"recurs_until"`
	ImageKey        string     `json:"image_key"`
}

func (r *ClassRequest) ToModel() *models.ClassSchedule {
	return &models.ClassSchedule{
		Name:            r.Name,
		Instructor:      r.Instructor,
		Description:     r.Description,
		Location:        r.Location,
		StartsAt:        r.StartsAt.UTC(),
		DurationMinutes: r.DurationMinutes,
		Capacity:        r.Capacity,
		Recurrence:      models.Recurrence(r.Recurrence),
		RecursUntil:     r.RecursUntil,
		ImageKey:        r.ImageKey,
	}
}
