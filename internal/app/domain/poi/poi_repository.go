package poi

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
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
	CreatePOI(ctx context.Context, params models.CreatePOIParams) (*models.PointOfInterest, error)
	GetPOI(ctx context.Context, id uuid.UUID) (*models.PointOfInterest, error)
	ListPOIs(ctx context.Context, limit, offset int) ([]models.PointOfInterest, int, error)
	UpdatePOI(ctx context.Context, id uuid.UUID, patch models.POIPatch) (*models.PointOfInterest, error)
	DeletePOI(ctx context.Context, id uuid.UUID) error
	CheckPOIExists(ctx context.Context, id uuid.UUID) (bool, error)

	// Translations
	AddTranslations(ctx context.Context, poiID uuid.UUID, translations map[string]models.TranslationInput) error
	GetTranslation(ctx context.Context, poiID uuid.UUID, languageCode string) (*models.POITranslation, error)
	ListTranslations(ctx context.Context, poiID uuid.UUID) ([]models.POITranslation, error)

	// Geospatial
	FindWithinRadius(ctx context.Context, center models.Point, radiusMeters float64) ([]models.POIWithRating, error)
	FindNearest(ctx context.Context, center models.Point, limit int) ([]models.POIWithRating, error)
	GetPOIWithRating(ctx context.Context, id uuid.UUID) (*models.POIWithRating, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.Pool
	tx     database.Transactor
	psql   sq.StatementBuilderType
}

func NewRepository(pgpool database.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
		tx:     database.NewTxManager(pgpool),
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const poiColumns = `p.id, ST_X(p.location::geometry), ST_Y(p.location::geometry), p.name, p.operator_id, p.created_at, p.updated_at`

func scanPOI(row pgx.Row, dest *models.PointOfInterest, extra ...any) error {
	targets := []any{
		&dest.ID, &dest.Location.Longitude, &dest.Location.Latitude,
		&dest.Name, &dest.OperatorID, &dest.CreatedAt, &dest.UpdatedAt,
	}
	return row.Scan(append(targets, extra...)...)
}

func (r *RepositoryImpl) CreatePOI(ctx context.Context, params models.CreatePOIParams) (*models.PointOfInterest, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "CreatePOI", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "points_of_interest"),
		attribute.Int("translations.count", len(params.Translations)),
	))
	defer span.End()

	var created models.PointOfInterest
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		q := database.Executor(ctx, r.pgpool)
		query := `
			INSERT INTO points_of_interest AS p (name, operator_id, location)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
			RETURNING ` + poiColumns
		if err := scanPOI(q.QueryRow(ctx, query,
			params.Name, params.OperatorID, params.Location.Longitude, params.Location.Latitude,
		), &created); err != nil {
			return database.Classify("insert poi", err)
		}
		if len(params.Translations) > 0 {
			if err := r.insertTranslations(ctx, q, created.ID, params.Translations); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create POI")
		r.logger.Error("Failed to create POI", zap.String("name", params.Name), zap.Error(err))
		return nil, err
	}

	created.Translations = make([]models.POITranslation, 0, len(params.Translations))
	for lang, t := range params.Translations {
		created.Translations = append(created.Translations, models.POITranslation{
			LanguageCode: lang, Name: t.Name, Description: t.Description,
		})
	}

	r.logger.Info("POI saved successfully", zap.String("name", created.Name), zap.String("id", created.ID.String()))
	span.SetStatus(codes.Ok, "POI created")
	return &created, nil
}

// insertTranslations keeps any existing row for a language untouched.
func (r *RepositoryImpl) insertTranslations(ctx context.Context, q database.Querier, poiID uuid.UUID, translations map[string]models.TranslationInput) error {
	const query = `
		INSERT INTO poi_translations (poi_id, language_code, name, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poi_id, language_code) DO NOTHING`
	for lang, t := range translations {
		if _, err := q.Exec(ctx, query, poiID, lang, t.Name, t.Description); err != nil {
			return database.Classify("insert poi translation", err)
		}
	}
	return nil
}

func (r *RepositoryImpl) GetPOI(ctx context.Context, id uuid.UUID) (*models.PointOfInterest, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "GetPOI", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("poi.id", id.String()),
	))
	defer span.End()

	var p models.PointOfInterest
	query := `SELECT ` + poiColumns + ` FROM points_of_interest p WHERE p.id = $1`
	if err := scanPOI(r.pgpool.QueryRow(ctx, query, id), &p); err != nil {
		err = database.Classify("get poi", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "POI not loaded")
		return nil, err
	}

	span.SetStatus(codes.Ok, "POI found")
	return &p, nil
}

func (r *RepositoryImpl) ListPOIs(ctx context.Context, limit, offset int) ([]models.PointOfInterest, int, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "ListPOIs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer span.End()

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM points_of_interest`).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count points_of_interest: %w", err)
	}

	query := `SELECT ` + poiColumns + ` FROM points_of_interest p ORDER BY p.created_at, p.id LIMIT $1 OFFSET $2`
	rows, err := r.pgpool.Query(ctx, query, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, 0, fmt.Errorf("failed to list points_of_interest: %w", err)
	}
	defer rows.Close()

	pois := make([]models.PointOfInterest, 0, limit)
	for rows.Next() {
		var p models.PointOfInterest
		if err := scanPOI(rows, &p); err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("failed to scan POI row: %w", err)
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error iterating POI rows: %w", err)
	}

	span.SetStatus(codes.Ok, "POIs listed")
	return pois, total, nil
}

func (r *RepositoryImpl) UpdatePOI(ctx context.Context, id uuid.UUID, patch models.POIPatch) (*models.PointOfInterest, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "UpdatePOI", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("poi.id", id.String()),
	))
	defer span.End()

	builder := r.psql.Update("points_of_interest AS p").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"p.id": id}).
		Suffix("RETURNING " + poiColumns)
	if patch.Name != nil {
		builder = builder.Set("name", *patch.Name)
		span.SetAttributes(attribute.Bool("update.name", true))
	}
	if patch.Location != nil {
		builder = builder.Set("location", sq.Expr("ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography",
			patch.Location.Longitude, patch.Location.Latitude))
		span.SetAttributes(attribute.Bool("update.location", true))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build poi update: %w", err)
	}
	r.logger.Debug("Executing UpdatePOI query", zap.String("query", query), zap.Int("args_count", len(args)))

	var updated models.PointOfInterest
	if err := scanPOI(r.pgpool.QueryRow(ctx, query, args...), &updated); err != nil {
		err = database.Classify("update poi", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "POI updated")
	return &updated, nil
}

func (r *RepositoryImpl) DeletePOI(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "DeletePOI", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("poi.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM points_of_interest WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete poi: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("poi %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) CheckPOIExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM points_of_interest WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check poi existence: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) AddTranslations(ctx context.Context, poiID uuid.UUID, translations map[string]models.TranslationInput) error {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "AddTranslations", trace.WithAttributes(
		attribute.String("poi.id", poiID.String()),
		attribute.Int("translations.count", len(translations)),
	))
	defer span.End()

	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return r.insertTranslations(ctx, database.Executor(ctx, r.pgpool), poiID, translations)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add translations")
		return err
	}
	return nil
}

func (r *RepositoryImpl) GetTranslation(ctx context.Context, poiID uuid.UUID, languageCode string) (*models.POITranslation, error) {
	const query = `
		SELECT language_code, name, description
		FROM poi_translations
		WHERE poi_id = $1 AND language_code = $2`
	var t models.POITranslation
	if err := r.pgpool.QueryRow(ctx, query, poiID, languageCode).Scan(&t.LanguageCode, &t.Name, &t.Description); err != nil {
		return nil, database.Classify("get poi translation", err)
	}
	return &t, nil
}

func (r *RepositoryImpl) ListTranslations(ctx context.Context, poiID uuid.UUID) ([]models.POITranslation, error) {
	const query = `
		SELECT language_code, name, description
		FROM poi_translations
		WHERE poi_id = $1
		ORDER BY language_code`
	rows, err := r.pgpool.Query(ctx, query, poiID)
	if err != nil {
		return nil, fmt.Errorf("failed to list poi translations: %w", err)
	}
	defer rows.Close()

	translations := make([]models.POITranslation, 0)
	for rows.Next() {
		var t models.POITranslation
		if err := rows.Scan(&t.LanguageCode, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan translation row: %w", err)
		}
		translations = append(translations, t)
	}
	return translations, rows.Err()
}

const ratedPOIQuery = `
	SELECT ` + poiColumns + `, AVG(rv.rating)::float8, COUNT(rv.id)
	FROM points_of_interest p
	LEFT JOIN reviews rv ON rv.poi_id = p.id`

func (r *RepositoryImpl) scanRated(rows pgx.Rows) ([]models.POIWithRating, error) {
	defer rows.Close()
	pois := make([]models.POIWithRating, 0)
	for rows.Next() {
		var p models.POIWithRating
		if err := scanPOI(rows, &p.PointOfInterest, &p.AvgRating, &p.ReviewCount); err != nil {
			return nil, fmt.Errorf("failed to scan POI row: %w", err)
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating POI rows: %w", err)
	}
	return pois, nil
}

// FindWithinRadius is a coarse prefilter. Callers decide the exact boundary.
func (r *RepositoryImpl) FindWithinRadius(ctx context.Context, center models.Point, radiusMeters float64) ([]models.POIWithRating, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "FindWithinRadius", trace.WithAttributes(
		attribute.Float64("location.latitude", center.Latitude),
		attribute.Float64("location.longitude", center.Longitude),
		attribute.Float64("radius_meters", radiusMeters),
	))
	defer span.End()

	query := ratedPOIQuery + `
		WHERE ST_DWithin(p.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)
		GROUP BY p.id`
	rows, err := r.pgpool.Query(ctx, query, center.Longitude, center.Latitude, radiusMeters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to search points_of_interest: %w", err)
	}
	pois, err := r.scanRated(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("results.count", len(pois)))
	span.SetStatus(codes.Ok, "POIs found")
	return pois, nil
}

func (r *RepositoryImpl) FindNearest(ctx context.Context, center models.Point, limit int) ([]models.POIWithRating, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "FindNearest", trace.WithAttributes(
		attribute.Float64("location.latitude", center.Latitude),
		attribute.Float64("location.longitude", center.Longitude),
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := ratedPOIQuery + `
		GROUP BY p.id
		ORDER BY p.location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $3`
	rows, err := r.pgpool.Query(ctx, query, center.Longitude, center.Latitude, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to order points_of_interest by distance: %w", err)
	}
	pois, err := r.scanRated(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "POIs ordered")
	return pois, nil
}

func (r *RepositoryImpl) GetPOIWithRating(ctx context.Context, id uuid.UUID) (*models.POIWithRating, error) {
	query := ratedPOIQuery + ` WHERE p.id = $1 GROUP BY p.id`
	var p models.POIWithRating
	err := scanPOI(r.pgpool.QueryRow(ctx, query, id), &p.PointOfInterest, &p.AvgRating, &p.ReviewCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("poi %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load poi rating: %w", err)
	}
	return &p, nil
}
