package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	"github.com/FACorreiaa/go-tourbook/internal/app/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// Service keeps at most one review per (user, POI).
type Service interface {
	Submit(ctx context.Context, userID, poiID uuid.UUID, rating int, text string) (*models.Review, bool, error)
	ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.Review, error)
	Summary(ctx context.Context, poiID uuid.UUID) (*models.RatingSummary, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo}
}

// Submit creates the review or overwrites the caller's previous one for the
// POI. The bool is true only when a new review was stored.
func (s *ServiceImpl) Submit(ctx context.Context, userID, poiID uuid.UUID, rating int, text string) (*models.Review, bool, error) {
	l := s.logger.With(zap.String("method", "Submit"),
		zap.String("user_id", userID.String()),
		zap.String("poi_id", poiID.String()))

	if rating < models.MinRating || rating > models.MaxRating {
		return nil, false, fmt.Errorf("rating %d outside [%d, %d]: %w",
			rating, models.MinRating, models.MaxRating, models.ErrInvalidRating)
	}

	review, created, err := s.repo.Upsert(ctx, models.Review{
		UserID: userID,
		POIID:  poiID,
		Rating: rating,
		Text:   strings.TrimSpace(text),
	})
	if err != nil {
		l.Error("Failed to submit review", zap.Error(err))
		return nil, false, err
	}

	metrics.Get().ReviewsSubmittedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", created)))
	l.Info("Review submitted", zap.Bool("created", created), zap.Int("rating", rating))
	return review, created, nil
}

func (s *ServiceImpl) ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.Review, error) {
	return s.repo.ListByPOI(ctx, poiID)
}

func (s *ServiceImpl) Summary(ctx context.Context, poiID uuid.UUID) (*models.RatingSummary, error) {
	return s.repo.Summary(ctx, poiID)
}
