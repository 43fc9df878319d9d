// Package conversion contains the orchestrator that sequences the
// permission gate, storage gateway, transform engine, record store,
// result cache and rewards side channel for one conversion request.
package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/pixelharbor/imageconvbackend/cache"
	"github.com/pixelharbor/imageconvbackend/media"
	"github.com/pixelharbor/imageconvbackend/models"
	"github.com/pixelharbor/imageconvbackend/quota"
	"github.com/pixelharbor/imageconvbackend/repository"
	"github.com/pixelharbor/imageconvbackend/rewards"
	"github.com/pixelharbor/imageconvbackend/workers"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// ErrRecordNotFound mirrors the repository sentinel for callers of the
// query operations.
var ErrRecordNotFound = repository.ErrRecordNotFound

// Options tune orchestrator policy.
type Options struct {
	// ChargeFailedConversions keeps the quota slot consumed when a
	// conversion fails after the gate. When false the slot is refunded.
	ChargeFailedConversions bool
	ListCacheTTL            time.Duration
	DetailCacheTTL          time.Duration
	// AwardPoints is granted per successful conversion (0 disables).
	AwardPoints int
}

// Service is the conversion orchestrator.
type Service struct {
	engine  *media.Engine
	store   media.Store
	pool    *workers.TransformPool
	records repository.ConversionRepository
	ledger  quota.Ledger
	cache   cache.Cache
	rewards rewards.Service
	opts    Options
}

func NewService(
	engine *media.Engine,
	store media.Store,
	pool *workers.TransformPool,
	records repository.ConversionRepository,
	ledger quota.Ledger,
	resultCache cache.Cache,
	rewardsSvc rewards.Service,
	opts Options,
) *Service {
	if opts.ListCacheTTL <= 0 {
		opts.ListCacheTTL = 5 * time.Minute
	}
	if opts.DetailCacheTTL <= 0 {
		opts.DetailCacheTTL = 10 * time.Minute
	}
	return &Service{
		engine:  engine,
		store:   store,
		pool:    pool,
		records: records,
		ledger:  ledger,
		cache:   resultCache,
		rewards: rewardsSvc,
		opts:    opts,
	}
}

// Convert runs one conversion. user may be nil for anonymous callers,
// who skip the permission gate, run in the temp namespace and leave no
// persisted record.
//
// Validation and permission failures return (nil, error) with no side
// effects. Any failure after the gate is converted into a persisted
// FAILED record returned with a nil error; callers distinguish the
// outcome by the record's status.
func (s *Service) Convert(ctx context.Context, user *models.User, data []byte, filename string, params media.ProcessingParams) (*models.ConversionRecord, error) {
	if err := params.Validate(); err != nil {
		return nil, &ValidationError{Detail: err.Error()}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Detail: "empty upload"}
	}

	// the gate must reject before any file is written or transform
	// attempted; a caller who is never permitted gets no audit entry
	if user != nil {
		if !user.IsActive {
			return nil, &PermissionDeniedError{Reason: "user account is disabled"}
		}
		decision, err := s.ledger.CheckAndReserve(ctx, user.ID, user.Role)
		if err != nil {
			return nil, fmt.Errorf("quota check failed: %w", err)
		}
		if !decision.Allowed {
			return nil, &PermissionDeniedError{Reason: decision.Reason}
		}
	}

	// elapsed time runs from the instant permission is granted to the
	// instant the terminal record is written
	start := time.Now()

	uploadKind := media.KindUpload
	outputKind := media.KindConverted
	if user == nil {
		uploadKind = media.KindTemp
		outputKind = media.KindTemp
	}

	uploadPath, err := s.store.Put(uploadKind, filename, bytes.NewReader(data))
	if err != nil {
		return s.failed(ctx, user, filename, params, start, fmt.Errorf("failed to store upload: %w", err))
	}

	result, err := s.pool.Do(ctx, func() (*media.TransformResult, error) {
		return s.engine.Transform(data, params)
	})
	if err != nil {
		return s.failed(ctx, user, filename, params, start, err, uploadPath)
	}

	outputName := outputFilename(filename, params.TargetFormat)
	outputPath, err := s.store.Put(outputKind, outputName, bytes.NewReader(result.Data))
	if err != nil {
		return s.failed(ctx, user, filename, params, start, fmt.Errorf("failed to store converted file: %w", err), uploadPath)
	}

	record := s.buildSuccessRecord(user, filename, params, uploadPath, outputPath, result, data)
	record.ConversionTime = time.Since(start).Seconds()

	if user != nil {
		if err := s.records.Create(record); err != nil {
			// the audit store itself is down; remove the orphaned
			// files rather than leave a success without a record
			s.cleanup(uploadPath, outputPath)
			return nil, fmt.Errorf("failed to persist conversion record: %w", err)
		}

		if err := s.cache.Set(ctx, cache.RecordDetailKey(record.ID), record, s.opts.DetailCacheTTL); err != nil {
			log.Printf("conversion: failed to cache record %d: %v", record.ID, err)
		}

		s.dispatchAward(user.ID, record.ID)
	}

	return record, nil
}

// failed turns a post-gate error into a persisted FAILED record after
// removing any partially written files. Anonymous conversions surface
// the error directly with no record.
func (s *Service) failed(ctx context.Context, user *models.User, filename string, params media.ProcessingParams, start time.Time, cause error, cleanupPaths ...string) (*models.ConversionRecord, error) {
	s.cleanup(cleanupPaths...)

	if user == nil {
		return nil, cause
	}

	if !s.opts.ChargeFailedConversions {
		if err := s.ledger.Release(ctx, user.ID); err != nil {
			log.Printf("conversion: failed to refund quota slot for user %d: %v", user.ID, err)
		}
	}

	errMsg := cause.Error()
	record := &models.ConversionRecord{
		UserID:           &user.ID,
		OriginalFilename: filename,
		TargetFormat:     string(params.TargetFormat),
		Status:           models.ConversionStatusFailed,
		ErrorMessage:     &errMsg,
		Watermark:        params.Watermark,
	}
	applyParams(record, params)
	record.ConversionTime = time.Since(start).Seconds()

	if err := s.records.Create(record); err != nil {
		log.Printf("conversion: failed to persist FAILED record for user %d: %v", user.ID, err)
		return nil, fmt.Errorf("conversion failed: %w", cause)
	}

	log.Printf("conversion: user %d conversion of %q failed: %v", user.ID, filename, cause)
	return record, nil
}

func (s *Service) buildSuccessRecord(user *models.User, filename string, params media.ProcessingParams, uploadPath, outputPath string, result *media.TransformResult, srcData []byte) *models.ConversionRecord {
	record := &models.ConversionRecord{
		OriginalFilename:  filename,
		TargetFormat:      string(params.TargetFormat),
		Status:            models.ConversionStatusSuccess,
		OriginalFilePath:  &uploadPath,
		ConvertedFilePath: &outputPath,
		OriginalFileSize:  &result.Source.Size,
		ConvertedFileSize: &result.Output.Size,
		OriginalFormat:    &result.Source.Format,
		ConvertedFormat:   &result.Output.Format,
		OriginalMode:      &result.Source.Mode,
		ConvertedMode:     &result.Output.Mode,
		OriginalWidth:     &result.Source.Width,
		OriginalHeight:    &result.Source.Height,
		ConvertedWidth:    &result.Output.Width,
		ConvertedHeight:   &result.Output.Height,
		Watermark:         params.Watermark,
	}
	if user != nil {
		record.UserID = &user.ID
	}
	applyParams(record, params)

	if ratio := compressionRatio(result.Source.Size, result.Output.Size); ratio != nil {
		record.CompressionRatio = ratio
	}

	if exifInfo := media.ExtractExif(srcData); exifInfo != nil {
		record.OriginalCameraMake = exifInfo.CameraMake
		record.OriginalCameraModel = exifInfo.CameraModel
		record.OriginalTakenAt = exifInfo.TakenAt
	}

	return record
}

// dispatchAward fires the points award without ever blocking or
// failing the conversion response.
func (s *Service) dispatchAward(userID, recordID uint) {
	if s.rewards == nil || s.opts.AwardPoints <= 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.rewards.Award(ctx, userID, s.opts.AwardPoints, models.PointSourceConversion, "image conversion completed", recordID)
		if err != nil {
			log.Printf("conversion: points award failed for user %d record %d: %v", userID, recordID, err)
		}
	}()
}

func (s *Service) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.store.Delete(p); err != nil {
			log.Printf("conversion: failed to clean up %q: %v", p, err)
		}
	}
}

// ListRecords returns one page of a user's conversion history, served
// read-through the list cache.
func (s *Service) ListRecords(ctx context.Context, userID uint, limit, offset int, formatFilter string) ([]models.ConversionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	formatFilter = strings.ToLower(strings.TrimSpace(formatFilter))

	key := cache.RecordListKey(userID, limit, offset, formatFilter)
	var cached []models.ConversionRecord
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("conversion: list cache read failed: %v", err)
	}

	records, err := s.records.ListByUser(userID, limit, offset, formatFilter)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, records, s.opts.ListCacheTTL); err != nil {
		log.Printf("conversion: list cache write failed: %v", err)
	}
	return records, nil
}

// GetRecord returns one record, served read-through the detail cache.
// A record never changes after creation, so cached hits are always
// current.
func (s *Service) GetRecord(ctx context.Context, userID, recordID uint) (*models.ConversionRecord, error) {
	key := cache.RecordDetailKey(recordID)

	var cached models.ConversionRecord
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if cached.UserID != nil && *cached.UserID == userID {
			return &cached, nil
		}
		// cached entry belongs to someone else; fall through to the
		// store, which scopes by owner
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("conversion: detail cache read failed: %v", err)
	}

	record, err := s.records.GetByID(recordID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, record, s.opts.DetailCacheTTL); err != nil {
		log.Printf("conversion: detail cache write failed: %v", err)
	}
	return record, nil
}

// DeleteRecord removes a record, its underlying files, and every cache
// entry that could serve it.
func (s *Service) DeleteRecord(ctx context.Context, userID, recordID uint) error {
	record, err := s.records.GetByID(recordID, userID)
	if err != nil {
		return err
	}

	if record.OriginalFilePath != nil {
		if err := s.store.Delete(*record.OriginalFilePath); err != nil {
			log.Printf("conversion: failed to delete original file for record %d: %v", recordID, err)
		}
	}
	if record.ConvertedFilePath != nil {
		if err := s.store.Delete(*record.ConvertedFilePath); err != nil {
			log.Printf("conversion: failed to delete converted file for record %d: %v", recordID, err)
		}
	}

	if err := s.records.Delete(recordID, userID); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, cache.RecordDetailKey(recordID)); err != nil {
		log.Printf("conversion: failed to invalidate detail cache for record %d: %v", recordID, err)
	}
	if err := s.cache.DeletePattern(ctx, cache.RecordListPattern(userID)); err != nil {
		log.Printf("conversion: failed to invalidate list cache for user %d: %v", userID, err)
	}
	return nil
}

// UsageInfo reports a user's quota standing for the limits endpoint.
type UsageInfo struct {
	Role       models.Role `json:"role"`
	TodayUsage int         `json:"today_usage"`
	DailyLimit int         `json:"daily_limit"`
	Remaining  int         `json:"remaining_usage"`
}

func (s *Service) Usage(ctx context.Context, user *models.User, limits quota.Limits) (UsageInfo, error) {
	used, err := s.ledger.UsageToday(ctx, user.ID)
	if err != nil {
		return UsageInfo{}, err
	}
	ceiling := limits.Ceiling(user.Role)
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return UsageInfo{
		Role:       user.Role,
		TodayUsage: used,
		DailyLimit: ceiling,
		Remaining:  remaining,
	}, nil
}

func applyParams(record *models.ConversionRecord, params media.ProcessingParams) {
	if params.TargetFormat.Lossy() {
		quality := params.Quality
		record.Quality = &quality
	}
	if params.ResizeWidth > 0 {
		w := params.ResizeWidth
		record.ResizeWidth = &w
	}
	if params.ResizeHeight > 0 {
		h := params.ResizeHeight
		record.ResizeHeight = &h
	}
}

// compressionRatio is defined only when both sizes are known and the
// original size is positive.
func compressionRatio(originalSize, convertedSize int64) *float64 {
	if originalSize <= 0 {
		return nil
	}
	ratio := (1 - float64(convertedSize)/float64(originalSize)) * 100
	return &ratio
}

// outputFilename derives a suggested name for the converted blob; the
// store replaces everything but the extension anyway.
func outputFilename(originalName string, format media.TargetFormat) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if base == "" || base == "." {
		base = "converted"
	}
	return base + "." + format.Extension()
}
