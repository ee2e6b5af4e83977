package itinerary

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
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
	CreateItinerary(ctx context.Context, userID uuid.UUID, name string) (*models.Itinerary, error)
	GetItinerary(ctx context.Context, id uuid.UUID) (*models.Itinerary, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error)
	RenameItinerary(ctx context.Context, id uuid.UUID, name string) (*models.Itinerary, error)
	DeleteItinerary(ctx context.Context, id uuid.UUID) error
	ItineraryOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	// Items
	LockDay(ctx context.Context, itineraryID uuid.UUID, date models.Date) error
	ItemsForDay(ctx context.Context, itineraryID uuid.UUID, date models.Date) ([]models.ItineraryItem, error)
	NextOrder(ctx context.Context, itineraryID uuid.UUID, date models.Date) (int, error)
	InsertItem(ctx context.Context, item models.ItineraryItem) (*models.ItineraryItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.ItineraryItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ListItems(ctx context.Context, itineraryID uuid.UUID) ([]models.ItineraryItem, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.Querier
	psql   sq.StatementBuilderType
}

func NewRepository(pgpool database.Querier, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func toPgTime(t models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func fromPgTime(t pgtype.Time) models.TimeOfDay {
	return models.TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond)
}

const itineraryColumns = `id, user_id, name, created_at, updated_at`

func scanItinerary(row pgx.Row, it *models.Itinerary) error {
	return row.Scan(&it.ID, &it.UserID, &it.Name, &it.CreatedAt, &it.UpdatedAt)
}

const itemColumns = `id, itinerary_id, poi_id, item_date, start_time, end_time, item_order`

func scanItem(row pgx.Row, item *models.ItineraryItem) error {
	var (
		date       time.Time
		start, end pgtype.Time
	)
	if err := row.Scan(&item.ID, &item.ItineraryID, &item.POIID, &date, &start, &end, &item.Order); err != nil {
		return err
	}
	item.Date = models.DateOf(date)
	item.StartTime = fromPgTime(start)
	item.EndTime = fromPgTime(end)
	return nil
}

func collectItems(rows pgx.Rows) ([]models.ItineraryItem, error) {
	defer rows.Close()
	items := make([]models.ItineraryItem, 0)
	for rows.Next() {
		var item models.ItineraryItem
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("failed to scan itinerary item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating itinerary items: %w", err)
	}
	return items, nil
}

func (r *RepositoryImpl) CreateItinerary(ctx context.Context, userID uuid.UUID, name string) (*models.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "CreateItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	query := `INSERT INTO itineraries (user_id, name) VALUES ($1, $2) RETURNING ` + itineraryColumns
	var it models.Itinerary
	if err := scanItinerary(r.pgpool.QueryRow(ctx, query, userID, name), &it); err != nil {
		err = database.Classify("insert itinerary", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create itinerary")
		return nil, err
	}
	it.Items = []models.ItineraryItem{}
	return &it, nil
}

func (r *RepositoryImpl) GetItinerary(ctx context.Context, id uuid.UUID) (*models.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "GetItinerary", trace.WithAttributes(
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()

	query := `SELECT ` + itineraryColumns + ` FROM itineraries WHERE id = $1`
	var it models.Itinerary
	if err := scanItinerary(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, id), &it); err != nil {
		err = database.Classify("get itinerary", err)
		span.RecordError(err)
		return nil, err
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	it.Items = items
	return &it, nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error) {
	query := `SELECT ` + itineraryColumns + ` FROM itineraries WHERE user_id = $1 ORDER BY created_at DESC, id`
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list itineraries: %w", err)
	}
	defer rows.Close()

	itineraries := make([]models.Itinerary, 0)
	for rows.Next() {
		var it models.Itinerary
		if err := scanItinerary(rows, &it); err != nil {
			return nil, fmt.Errorf("failed to scan itinerary row: %w", err)
		}
		itineraries = append(itineraries, it)
	}
	return itineraries, rows.Err()
}

func (r *RepositoryImpl) RenameItinerary(ctx context.Context, id uuid.UUID, name string) (*models.Itinerary, error) {
	query, args, err := r.psql.Update("itineraries").
		Set("name", name).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + itineraryColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build itinerary update: %w", err)
	}
	var it models.Itinerary
	if err := scanItinerary(r.pgpool.QueryRow(ctx, query, args...), &it); err != nil {
		return nil, database.Classify("rename itinerary", err)
	}
	return &it, nil
}

func (r *RepositoryImpl) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	tag, err := database.Executor(ctx, r.pgpool).Exec(ctx, `DELETE FROM itineraries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("itinerary %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) ItineraryOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := database.Executor(ctx, r.pgpool).QueryRow(ctx, `SELECT user_id FROM itineraries WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return uuid.Nil, database.Classify("itinerary owner", err)
	}
	return owner, nil
}

// LockDay takes a transaction-scoped advisory lock on (itinerary, date) so
// concurrent adds for the same day run one after another. It is released at
// commit or rollback.
func (r *RepositoryImpl) LockDay(ctx context.Context, itineraryID uuid.UUID, date models.Date) error {
	key := itineraryID.String() + ":" + date.String()
	_, err := database.Executor(ctx, r.pgpool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	if err != nil {
		return fmt.Errorf("failed to lock itinerary day: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) ItemsForDay(ctx context.Context, itineraryID uuid.UUID, date models.Date) ([]models.ItineraryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM itinerary_items
		WHERE itinerary_id = $1 AND item_date = $2
		ORDER BY item_order`
	rows, err := database.Executor(ctx, r.pgpool).Query(ctx, query, itineraryID, date.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for day: %w", err)
	}
	return collectItems(rows)
}

// NextOrder is one past the highest order used that day, so gaps left by
// deletions are never reused.
func (r *RepositoryImpl) NextOrder(ctx context.Context, itineraryID uuid.UUID, date models.Date) (int, error) {
	const query = `
		SELECT COALESCE(MAX(item_order) + 1, 0)
		FROM itinerary_items
		WHERE itinerary_id = $1 AND item_date = $2`
	var next int
	if err := database.Executor(ctx, r.pgpool).QueryRow(ctx, query, itineraryID, date.Time).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next order: %w", err)
	}
	return next, nil
}

func (r *RepositoryImpl) InsertItem(ctx context.Context, item models.ItineraryItem) (*models.ItineraryItem, error) {
	query := `
		INSERT INTO itinerary_items (itinerary_id, poi_id, item_date, start_time, end_time, item_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + itemColumns
	var created models.ItineraryItem
	err := scanItem(database.Executor(ctx, r.pgpool).QueryRow(ctx, query,
		item.ItineraryID, item.POIID, item.Date.Time, toPgTime(item.StartTime), toPgTime(item.EndTime), item.Order,
	), &created)
	if err != nil {
		return nil, database.Classify("insert itinerary item", err)
	}
	return &created, nil
}

func (r *RepositoryImpl) GetItem(ctx context.Context, itemID uuid.UUID) (*models.ItineraryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM itinerary_items WHERE id = $1`
	var item models.ItineraryItem
	if err := scanItem(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, itemID), &item); err != nil {
		return nil, database.Classify("get itinerary item", err)
	}
	return &item, nil
}

func (r *RepositoryImpl) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	tag, err := database.Executor(ctx, r.pgpool).Exec(ctx, `DELETE FROM itinerary_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete itinerary item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("itinerary item %s: %w", itemID, models.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) ListItems(ctx context.Context, itineraryID uuid.UUID) ([]models.ItineraryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM itinerary_items
		WHERE itinerary_id = $1
		ORDER BY item_date, item_order`
	rows, err := database.Executor(ctx, r.pgpool).Query(ctx, query, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list itinerary items: %w", err)
	}
	return collectItems(rows)
}
