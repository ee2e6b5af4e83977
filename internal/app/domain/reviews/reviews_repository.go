package reviews

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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
	Upsert(ctx context.Context, review models.Review) (*models.Review, bool, error)
	ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.Review, error)
	Summary(ctx context.Context, poiID uuid.UUID) (*models.RatingSummary, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.Querier
}

func NewRepository(pgpool database.Querier, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

const reviewColumns = `id, user_id, poi_id, rating, text, created_at`

func scanReview(row pgx.Row, r *models.Review, extra ...any) error {
	return row.Scan(append([]any{&r.ID, &r.UserID, &r.POIID, &r.Rating, &r.Text, &r.CreatedAt}, extra...)...)
}

// Upsert writes the (user, poi) review in one statement. xmax is zero only on
// a freshly inserted row version, which tells a create from an overwrite.
func (r *RepositoryImpl) Upsert(ctx context.Context, review models.Review) (*models.Review, bool, error) {
	ctx, span := otel.Tracer("ReviewsRepository").Start(ctx, "Upsert", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("poi.id", review.POIID.String()),
	))
	defer span.End()

	query := `
		INSERT INTO reviews (user_id, poi_id, rating, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, poi_id) DO UPDATE
		SET rating = EXCLUDED.rating, text = EXCLUDED.text
		RETURNING ` + reviewColumns + `, (xmax = 0) AS inserted`

	var (
		saved   models.Review
		created bool
	)
	err := scanReview(r.pgpool.QueryRow(ctx, query, review.UserID, review.POIID, review.Rating, review.Text), &saved, &created)
	if err != nil {
		err = database.Classify("upsert review", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upsert review")
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("created", created))
	return &saved, created, nil
}

func (r *RepositoryImpl) ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE poi_id = $1 ORDER BY created_at DESC, id`
	rows, err := r.pgpool.Query(ctx, query, poiID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]models.Review, 0)
	for rows.Next() {
		var rv models.Review
		if err := scanReview(rows, &rv); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

// Summary returns a NULL average when the POI has no reviews.
func (r *RepositoryImpl) Summary(ctx context.Context, poiID uuid.UUID) (*models.RatingSummary, error) {
	const query = `
		SELECT AVG(rating)::float8, COUNT(*)
		FROM reviews
		WHERE poi_id = $1`
	summary := models.RatingSummary{POIID: poiID}
	if err := r.pgpool.QueryRow(ctx, query, poiID).Scan(&summary.AvgRating, &summary.ReviewCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	return &summary, nil
}
