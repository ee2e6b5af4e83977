package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
)

var (
	scheduleCols = []string{"id", "poi_id", "start_at", "end_at", "total_capacity", "remaining_capacity", "is_active"}
	itemCols     = []string{"id", "itinerary_id", "user_id", "poi_id"}
	bookingCols  = []string{"id", "user_id", "itinerary_item_id", "schedule_id", "seats", "status", "payment_ref", "created_at", "updated_at"}
)

func newPgLedger(t *testing.T) (*ServiceImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	svc := NewServiceImpl(NewRepository(mock, zap.NewNop()), database.NewTxManager(mock), nil, zap.NewNop())
	return svc, mock
}

func TestLedgerReserve_SQL(t *testing.T) {
	svc, mock := newPgLedger(t)
	scheduleID, poiID, bookingID := uuid.New(), uuid.New(), uuid.New()
	userID, itemID := uuid.New(), uuid.New()
	start := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM itinerary_items i\s+JOIN itineraries it ON it.id = i.itinerary_id\s+WHERE i.id = \$1\s+FOR SHARE OF i`).
		WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(itemID, uuid.New(), userID, poiID))
	mock.ExpectQuery(`FROM attraction_schedules\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(scheduleID).
		WillReturnRows(pgxmock.NewRows(scheduleCols).AddRow(scheduleID, poiID, start, start.Add(time.Hour), 100, 10, true))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(userID, itemID, scheduleID, 2, "pending").
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(bookingID, userID, itemID, scheduleID, 2, "pending", nil, now, now))
	mock.ExpectExec(`SET remaining_capacity = remaining_capacity \+ \$2`).
		WithArgs(scheduleID, -2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	b, err := svc.Reserve(context.Background(), models.ReserveParams{
		UserID: userID, ItineraryItemID: itemID, ScheduleID: scheduleID, Seats: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, bookingID, b.ID)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Nil(t, b.PaymentRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReserve_SQLRollsBackWhenFull(t *testing.T) {
	svc, mock := newPgLedger(t)
	scheduleID, poiID, userID, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	start := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR SHARE OF i").
		WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(itemID, uuid.New(), userID, poiID))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(scheduleID).
		WillReturnRows(pgxmock.NewRows(scheduleCols).AddRow(scheduleID, poiID, start, start.Add(time.Hour), 10, 1, true))
	mock.ExpectRollback()

	_, err := svc.Reserve(context.Background(), models.ReserveParams{
		UserID: userID, ItineraryItemID: itemID, ScheduleID: scheduleID, Seats: 3,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientCapacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRelease_SQL(t *testing.T) {
	svc, mock := newPgLedger(t)
	bookingID, userID, itemID, scheduleID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(bookingID, userID, itemID, scheduleID, 3, "confirmed", nil, now, now))
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(bookingID, "cancelled", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(bookingID, userID, itemID, scheduleID, 3, "cancelled", nil, now, now))
	mock.ExpectExec("UPDATE attraction_schedules").
		WithArgs(scheduleID, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	b, err := svc.Release(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRelease_SQLAlreadyCancelled(t *testing.T) {
	svc, mock := newPgLedger(t)
	bookingID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(bookingID, uuid.New(), uuid.New(), uuid.New(), 3, "cancelled", nil, now, now))
	mock.ExpectCommit()

	b, err := svc.Release(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReserve_SQLForeignItem(t *testing.T) {
	svc, mock := newPgLedger(t)
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR SHARE OF i").
		WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(itemID, uuid.New(), uuid.New(), uuid.New()))
	mock.ExpectRollback()

	_, err := svc.Reserve(context.Background(), models.ReserveParams{
		UserID: uuid.New(), ItineraryItemID: itemID, ScheduleID: uuid.New(), Seats: 1,
	})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReleaseItems_SQL(t *testing.T) {
	now := time.Now()

	t.Run("single item", func(t *testing.T) {
		svc, mock := newPgLedger(t)
		bookingID, userID, itemID, scheduleID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`WITH items AS \(\s+SELECT id FROM itinerary_items WHERE id = \$1 FOR UPDATE`).
			WithArgs(itemID, "cancelled").
			WillReturnRows(pgxmock.NewRows(bookingCols).
				AddRow(bookingID, userID, itemID, scheduleID, 3, "cancelled", nil, now, now))
		mock.ExpectExec(`SET remaining_capacity = remaining_capacity \+ \$2`).
			WithArgs(scheduleID, 3).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		seats, err := svc.ReleaseItems(context.Background(), models.ItemScope{ItineraryID: uuid.New(), ItemID: itemID})
		require.NoError(t, err)
		assert.Equal(t, 3, seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("whole itinerary", func(t *testing.T) {
		svc, mock := newPgLedger(t)
		itineraryID, scheduleID := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM itineraries WHERE id = \$1 FOR UPDATE`).
			WithArgs(itineraryID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(itineraryID))
		mock.ExpectQuery(`WHERE itinerary_id = \$1 FOR UPDATE`).
			WithArgs(itineraryID, "cancelled").
			WillReturnRows(pgxmock.NewRows(bookingCols).
				AddRow(uuid.New(), uuid.New(), uuid.New(), scheduleID, 1, "cancelled", nil, now, now).
				AddRow(uuid.New(), uuid.New(), uuid.New(), scheduleID, 2, "cancelled", nil, now, now))
		mock.ExpectExec("UPDATE attraction_schedules").
			WithArgs(scheduleID, 3).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		seats, err := svc.ReleaseItems(context.Background(), models.ItemScope{ItineraryID: itineraryID})
		require.NoError(t, err)
		assert.Equal(t, 3, seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing booked", func(t *testing.T) {
		svc, mock := newPgLedger(t)
		itemID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("WITH items AS").
			WithArgs(itemID, "cancelled").
			WillReturnRows(pgxmock.NewRows(bookingCols))
		mock.ExpectCommit()

		seats, err := svc.ReleaseItems(context.Background(), models.ItemScope{ItemID: itemID})
		require.NoError(t, err)
		assert.Zero(t, seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
