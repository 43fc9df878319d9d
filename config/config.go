package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultUploadsSubDir   = "uploads"
	DefaultConvertedSubDir = "converted"
	DefaultTempSubDir      = "temp"
)

const (
	defaultMaxUploadSize      = 10 << 20 // 10 MiB
	defaultFreeDailyLimit     = 5
	defaultVipDailyLimit      = 100
	defaultSvipDailyLimit     = 1000
	defaultListCacheTTL       = 5 * time.Minute
	defaultDetailCacheTTL     = 10 * time.Minute
	defaultTransformQueueSize = 200
	defaultConvertAwardPoints = 10
)

var defaultAllowedExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"}

type Config struct {
	// database path
	DatabasePath string

	// storage configuration
	StorageRoot   string // primary root for uploaded and converted files
	UploadsPath   string // full-calculated path for original uploads
	ConvertedPath string // full-calculated path for conversion output
	TempPath      string // full-calculated path for transient files

	// upload validation
	MaxUploadSize     int64
	AllowedExtensions []string

	// per-role daily conversion ceilings
	FreeDailyLimit int
	VipDailyLimit  int
	SvipDailyLimit int

	// redis (quota counters + result cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// result cache TTLs
	ListCacheTTL   time.Duration
	DetailCacheTTL time.Duration

	// transform worker settings
	TransformQueueSize  int
	NumTransformWorkers int

	// whether a failed conversion still consumes a quota slot
	ChargeFailedConversions bool

	// points awarded per successful conversion
	ConvertAwardPoints int

	WatermarkText string
	JWTSecret     string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %t. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationSeconds(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(valStr)
	if err != nil || secs <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "conversions.db")

	storageRoot := getEnvOrDefault("STORAGE_ROOT", filepath.Join(".", "storage"))
	absStorageRoot, err := filepath.Abs(storageRoot)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage root '%s': %w", storageRoot, err)
	}

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	convertedSubDir := getEnvOrDefault("CONVERTED_SUBDIR", DefaultConvertedSubDir)
	tempSubDir := getEnvOrDefault("TEMP_SUBDIR", DefaultTempSubDir)

	maxUpload := int64(getEnvIntOrDefault("MAX_UPLOAD_SIZE", defaultMaxUploadSize))

	allowed := defaultAllowedExtensions
	if raw := os.Getenv("ALLOWED_EXTENSIONS"); raw != "" {
		allowed = nil
		for _, ext := range strings.Split(raw, ",") {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" {
				allowed = append(allowed, ext)
			}
		}
	}

	redisDB := 0
	if valStr := os.Getenv("REDIS_DB"); valStr != "" {
		if val, convErr := strconv.Atoi(valStr); convErr == nil && val >= 0 {
			redisDB = val
		} else {
			log.Printf("Warning: Invalid REDIS_DB '%s'. Using default 0.", valStr)
		}
	}

	cfg := Config{
		DatabasePath:            dbPath,
		StorageRoot:             absStorageRoot,
		UploadsPath:             filepath.Join(absStorageRoot, uploadsSubDir),
		ConvertedPath:           filepath.Join(absStorageRoot, convertedSubDir),
		TempPath:                filepath.Join(absStorageRoot, tempSubDir),
		MaxUploadSize:           maxUpload,
		AllowedExtensions:       allowed,
		FreeDailyLimit:          getEnvIntOrDefault("FREE_DAILY_LIMIT", defaultFreeDailyLimit),
		VipDailyLimit:           getEnvIntOrDefault("VIP_DAILY_LIMIT", defaultVipDailyLimit),
		SvipDailyLimit:          getEnvIntOrDefault("SVIP_DAILY_LIMIT", defaultSvipDailyLimit),
		RedisAddr:               getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		ListCacheTTL:            getEnvDurationSeconds("LIST_CACHE_TTL_SECONDS", defaultListCacheTTL),
		DetailCacheTTL:          getEnvDurationSeconds("DETAIL_CACHE_TTL_SECONDS", defaultDetailCacheTTL),
		TransformQueueSize:      getEnvIntOrDefault("TRANSFORM_QUEUE_SIZE", defaultTransformQueueSize),
		NumTransformWorkers:     getEnvIntOrDefault("NUM_TRANSFORM_WORKERS", 0),
		ChargeFailedConversions: getEnvBoolOrDefault("CHARGE_FAILED_CONVERSIONS", true),
		ConvertAwardPoints:      getEnvIntOrDefault("CONVERT_AWARD_POINTS", defaultConvertAwardPoints),
		WatermarkText:           getEnvOrDefault("WATERMARK_TEXT", "ImageConvert"),
		JWTSecret:               getEnvOrDefault("JWT_SECRET", "change_me_in_production"),
	}

	return cfg, nil
}

// IsAllowedExtension reports whether ext (with or without a leading dot)
// is on the configured source allow-list.
func (c Config) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
