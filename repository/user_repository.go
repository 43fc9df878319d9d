package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pixelharbor/imageconvbackend/models"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// GormUserRepository handles database operations for User entities
type GormUserRepository struct {
	DB *gorm.DB
}

// NewUserRepository creates a new instance of GormUserRepository
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{DB: db}
}

func (r *GormUserRepository) GetByID(userID uint) (*models.User, error) {
	var user models.User
	err := r.DB.First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

func (r *GormUserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.DB.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return &user, nil
}

// AddPoints adjusts a user's points balance by delta
func (r *GormUserRepository) AddPoints(userID uint, delta int) error {
	result := r.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to update points for user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
