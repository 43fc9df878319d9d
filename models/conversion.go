package models

import "time"

// Conversion status values. A record is persisted exactly once, at a
// terminal status; corrections are new records, never edits.
const (
	ConversionStatusSuccess = "success"
	ConversionStatusFailed  = "failed"
)

// ConversionRecord is the audit entity for one conversion attempt.
// It corresponds to the 'conversion_records' table.
type ConversionRecord struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID *uint `json:"user_id,omitempty" gorm:"index"` // Nullable: anonymous conversions are never persisted

	OriginalFilename string `json:"original_filename" gorm:"not null"`
	TargetFormat     string `json:"target_format" gorm:"not null;index"`

	Status       string  `json:"status" gorm:"not null"`
	ErrorMessage *string `json:"error_message,omitempty"` // Set iff status is failed

	// Elapsed seconds from permission grant to terminal record write.
	ConversionTime float64 `json:"conversion_time" gorm:"not null"`

	OriginalFilePath  *string `json:"original_file_path,omitempty"`
	ConvertedFilePath *string `json:"converted_file_path,omitempty"`

	OriginalFileSize  *int64 `json:"original_file_size,omitempty"`
	ConvertedFileSize *int64 `json:"converted_file_size,omitempty"`

	OriginalFormat  *string `json:"original_format,omitempty"`
	ConvertedFormat *string `json:"converted_format,omitempty"`

	OriginalMode  *string `json:"original_mode,omitempty"`
	ConvertedMode *string `json:"converted_mode,omitempty"`

	// EXIF metadata of the source, when present
	OriginalCameraMake  *string `json:"original_camera_make,omitempty"`
	OriginalCameraModel *string `json:"original_camera_model,omitempty"`
	OriginalTakenAt     *int64  `json:"original_taken_at,omitempty"`

	OriginalWidth   *int `json:"original_width,omitempty"`
	OriginalHeight  *int `json:"original_height,omitempty"`
	ConvertedWidth  *int `json:"converted_width,omitempty"`
	ConvertedHeight *int `json:"converted_height,omitempty"`

	// Applied processing parameters
	Quality      *int `json:"quality,omitempty"`
	ResizeWidth  *int `json:"resize_width,omitempty"`
	ResizeHeight *int `json:"resize_height,omitempty"`
	Watermark    bool `json:"watermark"`

	// Defined only when both sizes are known and the original size is
	// positive: (1 - converted/original) * 100.
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (ConversionRecord) TableName() string {
	return "conversion_records"
}

// IsSuccess reports whether the record reached the success terminal state.
func (r *ConversionRecord) IsSuccess() bool {
	return r.Status == ConversionStatusSuccess
}
