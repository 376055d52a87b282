package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint-yoga/studio/internal/metrics"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrClassNotFound      = errors.New("class not found")
	ErrInvalidOccurrence  = errors.New("class does not take place on this date")
	ErrBookingClosed      = errors.New("booking is closed for this class")
	ErrAlreadyBooked      = errors.New("user already has an active booking for this class")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrInvalidTransition  = errors.New("booking status cannot be changed")
	ErrPersistence        = errors.New("persistence error")
	domainErrors          = []error{ErrClassNotFound, ErrInvalidOccurrence, ErrBookingClosed, ErrAlreadyBooked, ErrBookingNotFound, ErrInvalidTransition, ErrPersistence}
)

// Notifier publishes booking lifecycle messages.
type Notifier interface {
	Publish(routingKey string, payload any) error
}

// OccupancyCache stores occurrence seat summaries between booking mutations.
// Get returns a version on a miss; Set stores a summary under that version, and an
// Invalidate in between makes the stored summary unreadable.
type OccupancyCache interface {
	Get(ctx context.Context, classID uint, date string) (*models.Occupancy, string, bool)
	Set(ctx context.Context, occ *models.Occupancy, version string)
	Invalidate(ctx context.Context, classID uint, date string)
}

// BookingEvent is the payload published for every booking status change.
type BookingEvent struct {
	MessageID        string               `json:"message_id"`
	BookingID        uint                 `json:"booking_id"`
	ClassID          uint                 `json:"class_id"`
	Date             string               `json:"date"`
	UserID           string               `json:"user_id"`
	Status           models.BookingStatus `json:"status"`
	WaitlistPosition *int                 `json:"waitlist_position,omitempty"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

type BookingService interface {
	RequestBooking(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID uint) (*models.Booking, error)
	UpdateStatus(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error)
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id uint) error
	ListBookingsForClass(ctx context.Context, classID uint, date time.Time) ([]models.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error)
	GetOccupancy(ctx context.Context, classID uint, date time.Time) (*models.Occupancy, error)
}

type bookingService struct {
	bookingRepo repository.BookingRepository
	classRepo   repository.ClassRepository
	notifier    Notifier
	cache       OccupancyCache
	now         func() time.Time
}

// NewBookingService wires the booking engine. notifier and cache may be nil.
func NewBookingService(bookingRepo repository.BookingRepository, classRepo repository.ClassRepository, notifier Notifier, cache OccupancyCache) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		classRepo:   classRepo,
		notifier:    notifier,
		cache:       cache,
		now:         time.Now,
	}
}

func (s *bookingService) RequestBooking(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error) {
	var result *models.Booking
	dateKey := date.UTC().Format(models.DateLayout)

	err := s.bookingRepo.Transaction(ctx, func(tx *gorm.DB) error {
		// 1. Lock the class row so concurrent requests for the last seat serialize
		class, err := s.classRepo.FindByIDForUpdate(ctx, tx, classID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return persistence(err)
		}
		if !class.Active {
			return ErrClassNotFound
		}
		if !class.OccursOn(date) {
			return ErrInvalidOccurrence
		}
		now := s.now()
		if now.After(class.OccurrenceStart(date)) {
			return ErrBookingClosed
		}

		// 2. One active booking per user and occurrence
		_, err = s.bookingRepo.FindActive(ctx, tx, userID, classID, dateKey)
		if err == nil {
			return ErrAlreadyBooked
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return persistence(err)
		}

		// 3. Seat or waitlist
		seated, err := s.bookingRepo.CountByStatus(ctx, tx, classID, dateKey, models.SeatStatuses...)
		if err != nil {
			return persistence(err)
		}
		lastPosition, err := s.bookingRepo.LastWaitlistPosition(ctx, tx, classID, dateKey)
		if err != nil {
			return persistence(err)
		}
		adm := Admit(class.Capacity, seated, lastPosition)

		// 4. Reactivate a cancelled booking for the same tuple instead of inserting
		prior, err := s.bookingRepo.FindLatestCancelled(ctx, tx, userID, classID, dateKey)
		switch {
		case err == nil:
			prior.Status = adm.Status
			prior.WaitlistPosition = adm.WaitlistPosition
			prior.BookedAt = now
			if err := s.bookingRepo.Save(ctx, tx, prior); err != nil {
				return persistence(err)
			}
			result = prior
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return persistence(err)
		}

		booking := &models.Booking{
			ClassID:          classID,
			ClassDate:        datatypes.Date(date.UTC()),
			UserID:           userID,
			Status:           adm.Status,
			WaitlistPosition: adm.WaitlistPosition,
			BookedAt:         now,
		}
		if err := s.bookingRepo.Create(ctx, tx, booking); err != nil {
			return persistence(err)
		}
		result = booking
		return nil
	})
	if err != nil {
		err = classify(err)
		metrics.RecordBookingOutcome(outcomeLabel(err))
		return nil, err
	}

	metrics.RecordBookingOutcome(string(result.Status))
	s.afterChange(ctx, result)
	return result, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID uint) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.StatusCancelled)
}

// UpdateStatus applies an explicit status change: cancellation or attendance marking.
func (s *bookingService) UpdateStatus(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error) {
	switch status {
	case models.StatusCancelled, models.StatusAttended, models.StatusNoShow:
		return s.transition(ctx, bookingID, status)
	}
	return nil, ErrInvalidTransition
}

func (s *bookingService) transition(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error) {
	var (
		result  *models.Booking
		changed bool
	)

	err := s.bookingRepo.Transaction(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookingRepo.FindByID(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return persistence(err)
		}
		result = booking

		if booking.Status == status {
			return nil
		}
		if !canTransition(booking.Status, status) {
			return ErrInvalidTransition
		}
		if err := s.bookingRepo.UpdateStatus(ctx, tx, bookingID, status); err != nil {
			return persistence(err)
		}
		booking.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if changed {
		s.afterChange(ctx, result)
	}
	return result, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, persistence(err)
	}
	return booking, nil
}

func (s *bookingService) DeleteBooking(ctx context.Context, id uint) error {
	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.bookingRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		return persistence(err)
	}
	log.Printf("[BookingService] deleted booking %d (class %d on %s)", id, booking.ClassID, booking.DateKey())
	if s.cache != nil {
		s.cache.Invalidate(ctx, booking.ClassID, booking.DateKey())
	}
	return nil
}

func (s *bookingService) ListBookingsForClass(ctx context.Context, classID uint, date time.Time) ([]models.Booking, error) {
	if _, err := s.findClass(ctx, classID); err != nil {
		return nil, err
	}
	bookings, err := s.bookingRepo.FindByOccurrence(ctx, classID, date.UTC().Format(models.DateLayout))
	if err != nil {
		return nil, persistence(err)
	}
	OrderRoster(bookings)
	return bookings, nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings, err := s.bookingRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, persistence(err)
	}
	return bookings, nil
}

func (s *bookingService) GetOccupancy(ctx context.Context, classID uint, date time.Time) (*models.Occupancy, error) {
	dateKey := date.UTC().Format(models.DateLayout)
	var version string
	if s.cache != nil {
		occ, v, ok := s.cache.Get(ctx, classID, dateKey)
		if ok {
			return occ, nil
		}
		version = v
	}

	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !class.OccursOn(date) {
		return nil, ErrInvalidOccurrence
	}

	seated, err := s.bookingRepo.CountByStatus(ctx, nil, classID, dateKey, models.SeatStatuses...)
	if err != nil {
		return nil, persistence(err)
	}
	waitlisted, err := s.bookingRepo.CountByStatus(ctx, nil, classID, dateKey, models.StatusWaitlisted)
	if err != nil {
		return nil, persistence(err)
	}

	available := class.Capacity - int(seated)
	if available < 0 {
		available = 0
	}
	occ := &models.Occupancy{
		ClassID:        classID,
		Date:           dateKey,
		Capacity:       class.Capacity,
		Confirmed:      seated,
		Waitlisted:     waitlisted,
		SeatsAvailable: available,
	}
	if s.cache != nil {
		s.cache.Set(ctx, occ, version)
	}
	return occ, nil
}

func (s *bookingService) findClass(ctx context.Context, classID uint) (*models.ClassSchedule, error) {
	class, err := s.classRepo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, persistence(err)
	}
	return class, nil
}

// afterChange runs once a booking mutation has committed.
func (s *bookingService) afterChange(ctx context.Context, b *models.Booking) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, b.ClassID, b.DateKey())
	}
	if s.notifier == nil {
		return
	}
	evt := BookingEvent{
		MessageID:        uuid.NewString(),
		BookingID:        b.ID,
		ClassID:          b.ClassID,
		Date:             b.DateKey(),
		UserID:           b.UserID,
		Status:           b.Status,
		WaitlistPosition: b.WaitlistPosition,
		OccurredAt:       s.now().UTC(),
	}
	if err := s.notifier.Publish("booking."+string(b.Status), evt); err != nil {
		log.Printf("[BookingService] failed to publish booking %d %s: %v", b.ID, b.Status, err)
	}
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// classify wraps errors that escaped the transaction (commit failures) as persistence errors.
func classify(err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return persistence(err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrClassNotFound):
		return "class_not_found"
	case errors.Is(err, ErrInvalidOccurrence), errors.Is(err, ErrBookingClosed):
		return "rejected"
	default:
		return "error"
	}
}
