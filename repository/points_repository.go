package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pixelharbor/imageconvbackend/models"
)

// GormPointsRepository handles database operations for PointRecord entities
type GormPointsRepository struct {
	DB *gorm.DB
}

// NewPointsRepository creates a new instance of GormPointsRepository
func NewPointsRepository(db *gorm.DB) *GormPointsRepository {
	return &GormPointsRepository{DB: db}
}

// CreateWithBalance inserts the point record and adjusts the owning
// user's balance in one transaction.
func (r *GormPointsRepository) CreateWithBalance(record *models.PointRecord) error {
	delta := record.Points
	if record.Type == models.PointTypeSpend {
		delta = -delta
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		result := tx.Model(&models.User{}).Where("id = ?", record.UserID).
			Update("points", gorm.Expr("points + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create point record for user %d: %w", record.UserID, err)
	}
	return nil
}

// ListByUser returns a page of a user's point records, newest first
func (r *GormPointsRepository) ListByUser(userID uint, limit, offset int) ([]models.PointRecord, error) {
	var records []models.PointRecord
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list point records for user %d: %w", userID, err)
	}
	return records, nil
}
