package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/repository"
	"gorm.io/gorm"
)

var ErrInvalidSchedule = errors.New("invalid class schedule")

// Routing keys of class replica sync messages.
const (
	RouteClassCreated     = "class.created"
	RouteClassUpdated     = "class.updated"
	RouteClassDeactivated = "class.deactivated"
)

type ScheduleService interface {
	CreateClass(ctx context.Context, class *models.ClassSchedule) error
	UpdateClass(ctx context.Context, id uint, changes *models.ClassSchedule) (*models.ClassSchedule, error)
	GetClass(ctx context.Context, id uint) (*models.ClassSchedule, error)
	ListClasses(ctx context.Context, includeInactive bool) ([]models.ClassSchedule, error)
	DeactivateClass(ctx context.Context, id uint) (*models.ClassSchedule, error)
	Occurrences(ctx context.Context, id uint, from time.Time, n int) ([]time.Time, error)
}

type scheduleService struct {
	repo      repository.ClassRepository
	publisher Notifier
}

func NewScheduleService(repo repository.ClassRepository, publisher Notifier) ScheduleService {
	return &scheduleService{repo: repo, publisher: publisher}
}

func (s *scheduleService) CreateClass(ctx context.Context, class *models.ClassSchedule) error {
	if class.Recurrence == "" {
		class.Recurrence = models.RecurrenceNone
	}
	class.Active = true
	if err := validateSchedule(class); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return persistence(fmt.Errorf("create class: %w", err))
	}
	s.publish(RouteClassCreated, class)
	return nil
}

// UpdateClass overwrites the editable fields of an existing class.
func (s *scheduleService) UpdateClass(ctx context.Context, id uint, changes *models.ClassSchedule) (*models.ClassSchedule, error) {
	class, err := s.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}

	class.Name = changes.Name
	class.Instructor = changes.Instructor
	class.Description = changes.Description
	class.Location = changes.Location
	class.StartsAt = changes.StartsAt
	class.DurationMinutes = changes.DurationMinutes
	class.Capacity = changes.Capacity
	class.Recurrence = changes.Recurrence
	if class.Recurrence == "" {
		class.Recurrence = models.RecurrenceNone
	}
	class.RecursUntil = changes.RecursUntil
	class.ImageKey = changes.ImageKey

	if err := validateSchedule(class); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, class); err != nil {
		return nil, persistence(fmt.Errorf("update class: %w", err))
	}
	s.publish(RouteClassUpdated, class)
	return class, nil
}

func (s *scheduleService) GetClass(ctx context.Context, id uint) (*models.ClassSchedule, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, persistence(fmt.Errorf("get class: %w", err))
	}
	return class, nil
}

func (s *scheduleService) ListClasses(ctx context.Context, includeInactive bool) ([]models.ClassSchedule, error) {
	classes, err := s.repo.FindAll(ctx, includeInactive)
	if err != nil {
		return nil, persistence(fmt.Errorf("list classes: %w", err))
	}
	return classes, nil
}

// DeactivateClass hides the class from booking; existing bookings are kept.
func (s *scheduleService) DeactivateClass(ctx context.Context, id uint) (*models.ClassSchedule, error) {
	class, err := s.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if !class.Active {
		return class, nil
	}
	class.Active = false
	if err := s.repo.Save(ctx, class); err != nil {
		return nil, persistence(fmt.Errorf("deactivate class: %w", err))
	}
	s.publish(RouteClassDeactivated, class)
	return class, nil
}

func (s *scheduleService) Occurrences(ctx context.Context, id uint, from time.Time, n int) ([]time.Time, error) {
	class, err := s.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}
	return class.Occurrences(from, n), nil
}

func (s *scheduleService) publish(routingKey string, class *models.ClassSchedule) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, class); err != nil {
		log.Printf("[ScheduleService] failed to publish %s for class %d: %v", routingKey, class.ID, err)
	}
}

func validateSchedule(c *models.ClassSchedule) error {
	switch {
	case c.Name == "" || c.Instructor == "":
		return fmt.Errorf("%w: name and instructor are required", ErrInvalidSchedule)
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidSchedule)
	case c.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidSchedule)
	case c.StartsAt.IsZero():
		return fmt.Errorf("%w: starts_at is required", ErrInvalidSchedule)
	case c.Recurrence != models.RecurrenceNone && c.Recurrence != models.RecurrenceWeekly:
		return fmt.Errorf("%w: unknown recurrence %q", ErrInvalidSchedule, c.Recurrence)
	case c.RecursUntil != nil && c.RecursUntil.Before(c.StartsAt):
		return fmt.Errorf("%w: recurs_until must not be before starts_at", ErrInvalidSchedule)
	}
	return nil
}
