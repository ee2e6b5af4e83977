package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	ItineraryExists(ctx context.Context, itineraryID uuid.UUID) (bool, error)
	ListStops(ctx context.Context, itineraryID uuid.UUID) ([]models.StopWithLocation, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.Querier
}

func NewRepository(pgpool database.Querier, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

func (r *RepositoryImpl) ItineraryExists(ctx context.Context, itineraryID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM itineraries WHERE id = $1)`, itineraryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check itinerary: %w", err)
	}
	return exists, nil
}

// ListStops returns the itinerary's items with their POI coordinates, ordered
// by (date, order).
func (r *RepositoryImpl) ListStops(ctx context.Context, itineraryID uuid.UUID) ([]models.StopWithLocation, error) {
	ctx, span := otel.Tracer("StatisticsRepository").Start(ctx, "ListStops", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("itinerary.id", itineraryID.String()),
	))
	defer span.End()

	const query = `
		SELECT i.id, i.item_date, i.item_order,
		       ST_X(p.location::geometry), ST_Y(p.location::geometry)
		FROM itinerary_items i
		JOIN points_of_interest p ON p.id = i.poi_id
		WHERE i.itinerary_id = $1
		ORDER BY i.item_date, i.item_order`

	rows, err := r.pgpool.Query(ctx, query, itineraryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to query itinerary stops: %w", err)
	}
	defer rows.Close()

	stops := make([]models.StopWithLocation, 0)
	for rows.Next() {
		var (
			s    models.StopWithLocation
			date time.Time
		)
		if err := rows.Scan(&s.ItemID, &date, &s.Order, &s.Location.Longitude, &s.Location.Latitude); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan itinerary stop: %w", err)
		}
		s.Date = models.DateOf(date)
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating itinerary stops: %w", err)
	}
	span.SetAttributes(attribute.Int("stops.count", len(stops)))
	return stops, nil
}
