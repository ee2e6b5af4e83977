package booking

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

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/schedule"
	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository methods use the transaction carried by ctx when there is one.
// The locking reads only make sense inside WithinTransaction.
type Repository interface {
	LockItem(ctx context.Context, itemID uuid.UUID) (*models.BookableItem, error)
	LockSchedule(ctx context.Context, scheduleID uuid.UUID) (*models.AttractionSchedule, error)
	AdjustRemaining(ctx context.Context, scheduleID uuid.UUID, delta int) error
	InsertBooking(ctx context.Context, params models.ReserveParams) (*models.Booking, error)
	LockBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	SetStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus, paymentRef *string) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	CancelActiveOnItems(ctx context.Context, scope models.ItemScope) ([]models.Booking, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.Querier
}

func NewRepository(pgpool database.Querier, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

const bookingColumns = `id, user_id, itinerary_item_id, schedule_id, seats, status, payment_ref, created_at, updated_at`

func scanBooking(row pgx.Row, b *models.Booking) error {
	var status string
	if err := row.Scan(&b.ID, &b.UserID, &b.ItineraryItemID, &b.ScheduleID, &b.Seats,
		&status, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}
	b.Status = models.BookingStatus(status)
	return nil
}

// LockItem share-locks the itinerary item being booked so it cannot be
// deleted before the booking commits, and reports who owns it.
func (r *RepositoryImpl) LockItem(ctx context.Context, itemID uuid.UUID) (*models.BookableItem, error) {
	query := `
		SELECT i.id, i.itinerary_id, it.user_id, i.poi_id
		FROM itinerary_items i
		JOIN itineraries it ON it.id = i.itinerary_id
		WHERE i.id = $1
		FOR SHARE OF i`
	var item models.BookableItem
	err := database.Executor(ctx, r.pgpool).QueryRow(ctx, query, itemID).
		Scan(&item.ID, &item.ItineraryID, &item.OwnerID, &item.POIID)
	if err != nil {
		return nil, database.Classify("lock itinerary item", err)
	}
	return &item, nil
}

// LockSchedule reads the schedule row with FOR UPDATE. Concurrent reservers
// queue here until the holding transaction ends.
func (r *RepositoryImpl) LockSchedule(ctx context.Context, scheduleID uuid.UUID) (*models.AttractionSchedule, error) {
	ctx, span := otel.Tracer("BookingRepository").Start(ctx, "LockSchedule", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT FOR UPDATE"),
		attribute.String("schedule.id", scheduleID.String()),
	))
	defer span.End()

	query := `
		SELECT id, poi_id, start_at, end_at, total_capacity, remaining_capacity, is_active
		FROM attraction_schedules
		WHERE id = $1
		FOR UPDATE`
	var s models.AttractionSchedule
	if err := schedule.ScanSchedule(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, scheduleID), &s); err != nil {
		err = database.Classify("lock schedule", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Schedule not locked")
		return nil, err
	}
	return &s, nil
}

func (r *RepositoryImpl) AdjustRemaining(ctx context.Context, scheduleID uuid.UUID, delta int) error {
	const query = `
		UPDATE attraction_schedules
		SET remaining_capacity = remaining_capacity + $2
		WHERE id = $1`
	tag, err := database.Executor(ctx, r.pgpool).Exec(ctx, query, scheduleID, delta)
	if err != nil {
		return database.Classify("adjust remaining capacity", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", scheduleID, models.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) InsertBooking(ctx context.Context, params models.ReserveParams) (*models.Booking, error) {
	query := `
		INSERT INTO bookings (user_id, itinerary_item_id, schedule_id, seats, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + bookingColumns
	var b models.Booking
	err := scanBooking(database.Executor(ctx, r.pgpool).QueryRow(ctx, query,
		params.UserID, params.ItineraryItemID, params.ScheduleID, params.Seats, string(models.BookingStatusPending),
	), &b)
	if err != nil {
		return nil, database.Classify("insert booking", err)
	}
	return &b, nil
}

func (r *RepositoryImpl) LockBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	var b models.Booking
	if err := scanBooking(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, bookingID), &b); err != nil {
		return nil, database.Classify("lock booking", err)
	}
	return &b, nil
}

// SetStatus keeps the stored payment_ref when paymentRef is nil.
func (r *RepositoryImpl) SetStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus, paymentRef *string) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2, payment_ref = COALESCE($3, payment_ref), updated_at = now()
		WHERE id = $1
		RETURNING ` + bookingColumns
	var b models.Booking
	if err := scanBooking(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, bookingID, string(status), paymentRef), &b); err != nil {
		return nil, database.Classify("update booking status", err)
	}
	return &b, nil
}

func (r *RepositoryImpl) GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var b models.Booking
	if err := scanBooking(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, bookingID), &b); err != nil {
		return nil, database.Classify("get booking", err)
	}
	return &b, nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	ctx, span := otel.Tracer("BookingRepository").Start(ctx, "ListByUser", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id`
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}
	return bookings, nil
}

// CancelActiveOnItems marks every active booking on the scoped items as
// cancelled and returns them. The items are locked first so no booking can be
// added to them until the caller's transaction ends. Crediting the seats back
// is left to the caller.
func (r *RepositoryImpl) CancelActiveOnItems(ctx context.Context, scope models.ItemScope) ([]models.Booking, error) {
	ctx, span := otel.Tracer("BookingRepository").Start(ctx, "CancelActiveOnItems", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("itinerary.id", scope.ItineraryID.String()),
		attribute.String("item.id", scope.ItemID.String()),
	))
	defer span.End()

	q := database.Executor(ctx, r.pgpool)
	column, key := "id", scope.ItemID
	if scope.ItemID == uuid.Nil {
		column, key = "itinerary_id", scope.ItineraryID
		// Blocks new items from being added while the itinerary goes away.
		var locked uuid.UUID
		if err := q.QueryRow(ctx, `SELECT id FROM itineraries WHERE id = $1 FOR UPDATE`, key).Scan(&locked); err != nil {
			err = database.Classify("lock itinerary", err)
			span.RecordError(err)
			return nil, err
		}
	}

	query := `
		WITH items AS (
			SELECT id FROM itinerary_items WHERE ` + column + ` = $1 FOR UPDATE
		)
		UPDATE bookings b
		SET status = $2, updated_at = now()
		FROM items
		WHERE b.itinerary_item_id = items.id AND b.status <> $2
		RETURNING b.id, b.user_id, b.itinerary_item_id, b.schedule_id, b.seats, b.status,
			b.payment_ref, b.created_at, b.updated_at`
	rows, err := q.Query(ctx, query, key, string(models.BookingStatusCancelled))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cancel failed")
		return nil, database.Classify("cancel bookings on items", err)
	}
	defer rows.Close()

	cancelled := make([]models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan cancelled booking: %w", err)
		}
		cancelled = append(cancelled, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cancelled bookings: %w", err)
	}
	span.SetAttributes(attribute.Int("bookings.cancelled", len(cancelled)))
	return cancelled, nil
}
