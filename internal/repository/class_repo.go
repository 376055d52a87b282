package repository

import (
	"context"

	"github.com/stillpoint-yoga/studio/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClassRepository interface {
	Create(ctx context.Context, class *models.ClassSchedule) error
	Save(ctx context.Context, class *models.ClassSchedule) error
	Upsert(ctx context.Context, class *models.ClassSchedule) error
	FindByID(ctx context.Context, id uint) (*models.ClassSchedule, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.ClassSchedule, error)
	FindAll(ctx context.Context, includeInactive bool) ([]models.ClassSchedule, error)
}

type classRepository struct {
	db *gorm.DB
}

func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) Create(ctx context.Context, class *models.ClassSchedule) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *classRepository) Save(ctx context.Context, class *models.ClassSchedule) error {
	return r.db.WithContext(ctx).Save(class).Error
}

// Upsert inserts the class or overwrites the replica row with the same id.
func (r *classRepository) Upsert(ctx context.Context, class *models.ClassSchedule) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "instructor", "description", "location", "starts_at", "duration_minutes",
			"capacity", "recurrence", "recurs_until", "active", "image_key", "updated_at",
		}),
	}).Create(class).Error
}

func (r *classRepository) FindByID(ctx context.Context, id uint) (*models.ClassSchedule, error) {
	var class models.ClassSchedule
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByIDForUpdate acquires a row-level lock on the class within the given transaction.
func (r *classRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.ClassSchedule, error) {
	var class models.ClassSchedule
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&class, id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepository) FindAll(ctx context.Context, includeInactive bool) ([]models.ClassSchedule, error) {
	var classes []models.ClassSchedule
	q := r.db.WithContext(ctx)
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("starts_at ASC, id ASC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}
