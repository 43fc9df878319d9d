package models

import "time"

// Point record types and sources.
const (
	PointTypeEarn  = "earn"
	PointTypeSpend = "spend"

	PointSourceConversion = "image_convert"
	PointSourceAdmin      = "admin_adjust"
)

// PointRecord is one entry in a user's points ledger.
type PointRecord struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	UserID      uint    `json:"user_id" gorm:"index;not null"`
	Points      int     `json:"points" gorm:"not null"`
	Type        string  `json:"type" gorm:"not null"`
	Source      string  `json:"source" gorm:"not null"`
	Description string  `json:"description"`
	RelatedID   *uint   `json:"related_id,omitempty"`
	RelatedType *string `json:"related_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (PointRecord) TableName() string {
	return "point_records"
}
