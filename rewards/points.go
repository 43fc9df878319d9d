// Package rewards awards points for completed conversions. It is a
// best-effort side channel: the conversion orchestrator dispatches
// awards fire-and-forget, and a rewards failure never affects the
// conversion's recorded status.
package rewards

import (
	"context"
	"fmt"

	"github.com/pixelharbor/imageconvbackend/models"
	"github.com/pixelharbor/imageconvbackend/repository"
)

// Service awards points to a user for an action.
type Service interface {
	Award(ctx context.Context, userID uint, points int, source, description string, relatedID uint) error
}

// PointsService implements Service on the points ledger tables.
type PointsService struct {
	pointsRepo repository.PointsRepository
}

func NewPointsService(pointsRepo repository.PointsRepository) *PointsService {
	return &PointsService{pointsRepo: pointsRepo}
}

func (s *PointsService) Award(_ context.Context, userID uint, points int, source, description string, relatedID uint) error {
	if points <= 0 {
		return nil
	}

	relatedType := "conversion_record"
	record := &models.PointRecord{
		UserID:      userID,
		Points:      points,
		Type:        models.PointTypeEarn,
		Source:      source,
		Description: description,
		RelatedID:   &relatedID,
		RelatedType: &relatedType,
	}

	if err := s.pointsRepo.CreateWithBalance(record); err != nil {
		return fmt.Errorf("failed to award %d points to user %d: %w", points, userID, err)
	}
	return nil
}
