package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pixelharbor/imageconvbackend/models"
)

// ErrRecordNotFound is returned when a record does not exist or does
// not belong to the requesting user.
var ErrRecordNotFound = errors.New("conversion record not found")

// GormConversionRepository handles database operations for ConversionRecord entities
type GormConversionRepository struct {
	DB *gorm.DB
}

// NewConversionRepository creates a new instance of GormConversionRepository
func NewConversionRepository(db *gorm.DB) *GormConversionRepository {
	return &GormConversionRepository{DB: db}
}

// Create persists a terminal record. Records are written exactly once;
// corrections are new records, not edits.
func (r *GormConversionRepository) Create(record *models.ConversionRecord) error {
	if err := r.DB.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create conversion record: %w", err)
	}
	return nil
}

// GetByID retrieves a record scoped to its owning user
func (r *GormConversionRepository) GetByID(recordID, userID uint) (*models.ConversionRecord, error) {
	var record models.ConversionRecord
	err := r.DB.Where("id = ? AND user_id = ?", recordID, userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get conversion record %d: %w", recordID, err)
	}
	return &record, nil
}

// ListByUser returns a page of a user's records, newest first,
// optionally filtered by target format
func (r *GormConversionRepository) ListByUser(userID uint, limit, offset int, formatFilter string) ([]models.ConversionRecord, error) {
	query := r.DB.Where("user_id = ?", userID)
	if formatFilter != "" {
		query = query.Where("target_format = ?", strings.ToLower(formatFilter))
	}

	var records []models.ConversionRecord
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversion records for user %d: %w", userID, err)
	}
	return records, nil
}

// CountByUser returns the total number of records a user owns
func (r *GormConversionRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.ConversionRecord{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count conversion records for user %d: %w", userID, err)
	}
	return count, nil
}

// Delete removes a record scoped to its owning user
func (r *GormConversionRepository) Delete(recordID, userID uint) error {
	result := r.DB.Where("id = ? AND user_id = ?", recordID, userID).Delete(&models.ConversionRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete conversion record %d: %w", recordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
