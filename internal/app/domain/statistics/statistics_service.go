package statistics

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/geo"
	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetItineraryStats(ctx context.Context, itineraryID uuid.UUID) (*models.ItineraryStats, error)
}

type ServiceImpl struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *ServiceImpl) GetItineraryStats(ctx context.Context, itineraryID uuid.UUID) (*models.ItineraryStats, error) {
	l := s.logger.With(zap.String("method", "GetItineraryStats"), zap.String("itinerary_id", itineraryID.String()))

	exists, err := s.repo.ItineraryExists(ctx, itineraryID)
	if err != nil {
		l.Error("Failed to check itinerary", zap.Error(err))
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("itinerary %s: %w", itineraryID, models.ErrNotFound)
	}

	stops, err := s.repo.ListStops(ctx, itineraryID)
	if err != nil {
		l.Error("Failed to load itinerary stops", zap.Error(err))
		return nil, err
	}

	stats := Compute(stops)
	l.Debug("Computed itinerary statistics",
		zap.Float64("total_walk_km", stats.TotalWalkKm),
		zap.Int("days", len(stats.DailyOccupancy)))
	return &stats, nil
}

// Compute sequences stops by (date, order). Walking distance only adds legs
// between consecutive stops on the same date.
func Compute(stops []models.StopWithLocation) models.ItineraryStats {
	stops = slices.Clone(stops)
	slices.SortStableFunc(stops, func(a, b models.StopWithLocation) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Order, b.Order)
	})

	stats := models.ItineraryStats{DailyOccupancy: make([]models.DailyOccupancy, 0)}

	var totalKm float64
	for i, stop := range stops {
		day := stop.Date.String()
		if n := len(stats.DailyOccupancy); n > 0 && stats.DailyOccupancy[n-1].Date == day {
			stats.DailyOccupancy[n-1].Occupancy++
		} else {
			stats.DailyOccupancy = append(stats.DailyOccupancy, models.DailyOccupancy{Date: day, Occupancy: 1})
		}

		if i > 0 && stops[i-1].Date.Equal(stop.Date.Time) {
			totalKm += geo.Haversine(stops[i-1].Location, stop.Location)
		}
	}

	stats.TotalWalkKm = roundTo(totalKm, 3)
	return stats
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
