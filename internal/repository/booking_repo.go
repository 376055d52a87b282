package repository

import (
	"context"

	"github.com/stillpoint-yoga/studio/internal/models"
	"gorm.io/gorm"
)

type BookingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	Save(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error)
	FindByOccurrence(ctx context.Context, classID uint, date string) ([]models.Booking, error)
	FindByUser(ctx context.Context, userID string) ([]models.Booking, error)
	FindActive(ctx context.Context, tx *gorm.DB, userID string, classID uint, date string) (*models.Booking, error)
	FindLatestCancelled(ctx context.Context, tx *gorm.DB, userID string, classID uint, date string) (*models.Booking, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, classID uint, date string, statuses ...models.BookingStatus) (int64, error)
	LastWaitlistPosition(ctx context.Context, tx *gorm.DB, classID uint, date string) (int64, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, bookingID uint, status models.BookingStatus) error
	Delete(ctx context.Context, id uint) error
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// conn prefers the caller's transaction over the base connection.
func (r *bookingRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *bookingRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *bookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return r.conn(ctx, tx).Create(booking).Error
}

func (r *bookingRepository) Save(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return r.conn(ctx, tx).Save(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.conn(ctx, tx).First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByOccurrence returns the non-cancelled bookings of one class occurrence.
func (r *bookingRepository) FindByOccurrence(ctx context.Context, classID uint, date string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND class_date = ? AND status <> ?", classID, date, models.StatusCancelled).
		Order("id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("class_date DESC, id DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindActive(ctx context.Context, tx *gorm.DB, userID string, classID uint, date string) (*models.Booking, error) {
	var booking models.Booking
	err := r.conn(ctx, tx).
		Where("user_id = ? AND class_id = ? AND class_date = ? AND status <> ?", userID, classID, date, models.StatusCancelled).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindLatestCancelled(ctx context.Context, tx *gorm.DB, userID string, classID uint, date string) (*models.Booking, error) {
	var booking models.Booking
	err := r.conn(ctx, tx).
		Where("user_id = ? AND class_id = ? AND class_date = ? AND status = ?", userID, classID, date, models.StatusCancelled).
		Order("updated_at DESC, id DESC").
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) CountByStatus(ctx context.Context, tx *gorm.DB, classID uint, date string, statuses ...models.BookingStatus) (int64, error) {
	var count int64
	err := r.conn(ctx, tx).
		Model(&models.Booking{}).
		Where("class_id = ? AND class_date = ? AND status IN ?", classID, date, statuses).
		Count(&count).Error
	return count, err
}

// LastWaitlistPosition returns the highest position held by a waitlisted booking, or 0.
func (r *bookingRepository) LastWaitlistPosition(ctx context.Context, tx *gorm.DB, classID uint, date string) (int64, error) {
	var last int64
	err := r.conn(ctx, tx).
		Model(&models.Booking{}).
		Where("class_id = ? AND class_date = ? AND status = ?", classID, date, models.StatusWaitlisted).
		Select("COALESCE(MAX(waitlist_position), 0)").
		Scan(&last).Error
	return last, err
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, bookingID uint, status models.BookingStatus) error {
	return r.conn(ctx, tx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("status", status).Error
}

func (r *bookingRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Booking{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
