package repository

import "github.com/pixelharbor/imageconvbackend/models"

// ConversionRepository defines database operations for conversion records.
// Records are append-only: there is no update method by design.
type ConversionRepository interface {
	Create(record *models.ConversionRecord) error
	GetByID(recordID, userID uint) (*models.ConversionRecord, error)
	ListByUser(userID uint, limit, offset int, formatFilter string) ([]models.ConversionRecord, error)
	CountByUser(userID uint) (int64, error)
	Delete(recordID, userID uint) error
}

// UserRepository defines database operations for users.
type UserRepository interface {
	GetByID(userID uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	AddPoints(userID uint, delta int) error
}

// PointsRepository defines database operations for point records.
type PointsRepository interface {
	CreateWithBalance(record *models.PointRecord) error
	ListByUser(userID uint, limit, offset int) ([]models.PointRecord, error)
}
