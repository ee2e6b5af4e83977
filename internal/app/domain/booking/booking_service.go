package booking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	"github.com/FACorreiaa/go-tourbook/internal/app/observability/metrics"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the capacity ledger: every seat a booking holds is missing from
// its schedule's remaining capacity until the booking is cancelled.
type Service interface {
	Reserve(ctx context.Context, params models.ReserveParams) (*models.Booking, error)
	Release(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	Authorize(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error)
	ReleaseItems(ctx context.Context, scope models.ItemScope) (int, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	repo      Repository
	tx        database.Transactor
	publisher EventPublisher
}

func NewServiceImpl(repo Repository, tx database.Transactor, publisher EventPublisher, logger *zap.Logger) *ServiceImpl {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		tx:        tx,
		publisher: publisher,
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "reserved"
	case errors.Is(err, models.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, models.ErrScheduleInactive):
		return "schedule_inactive"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// Reserve locks the caller's itinerary item and the schedule row, checks the
// schedule is for the item's POI, is active and has room, then inserts the
// booking and decrements remaining capacity in one transaction.
func (s *ServiceImpl) Reserve(ctx context.Context, params models.ReserveParams) (*models.Booking, error) {
	ctx, span := otel.Tracer("BookingService").Start(ctx, "Reserve", trace.WithAttributes(
		attribute.String("schedule.id", params.ScheduleID.String()),
		attribute.Int("seats", params.Seats),
	))
	defer span.End()
	l := s.logger.With(zap.String("method", "Reserve"),
		zap.String("schedule_id", params.ScheduleID.String()),
		zap.Int("seats", params.Seats))

	if params.Seats < 1 {
		return nil, fmt.Errorf("seats must be at least 1, got %d: %w", params.Seats, models.ErrValidation)
	}

	var booking *models.Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		item, err := s.repo.LockItem(ctx, params.ItineraryItemID)
		if err != nil {
			return err
		}
		if item.OwnerID != params.UserID {
			return fmt.Errorf("itinerary item %s belongs to another user: %w", item.ID, models.ErrForbidden)
		}

		schedule, err := s.repo.LockSchedule(ctx, params.ScheduleID)
		if err != nil {
			return err
		}
		if schedule.POIID != item.POIID {
			return fmt.Errorf("schedule %s is not for the POI of item %s: %w", schedule.ID, item.ID, models.ErrValidation)
		}
		if !schedule.IsActive {
			return fmt.Errorf("schedule %s: %w", schedule.ID, models.ErrScheduleInactive)
		}
		if schedule.RemainingCapacity < params.Seats {
			return fmt.Errorf("requested %d seats, %d remaining: %w",
				params.Seats, schedule.RemainingCapacity, models.ErrInsufficientCapacity)
		}

		booking, err = s.repo.InsertBooking(ctx, params)
		if err != nil {
			return err
		}
		return s.repo.AdjustRemaining(ctx, schedule.ID, -params.Seats)
	})

	m := metrics.Get()
	m.BookingsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeOf(err))))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reservation rejected")
		l.Info("Reservation rejected", zap.Error(err))
		return nil, err
	}
	m.BookedSeatsTotal.Add(ctx, int64(params.Seats))

	l.Info("Seats reserved", zap.String("booking_id", booking.ID.String()))
	span.SetStatus(codes.Ok, "Seats reserved")
	return booking, nil
}

// Release cancels a booking and credits its seats back. Releasing a booking
// that is already cancelled changes nothing, so capacity is returned once.
func (s *ServiceImpl) Release(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	ctx, span := otel.Tracer("BookingService").Start(ctx, "Release", trace.WithAttributes(
		attribute.String("booking.id", bookingID.String()),
	))
	defer span.End()
	l := s.logger.With(zap.String("method", "Release"), zap.String("booking_id", bookingID.String()))

	var (
		cancelled *models.Booking
		released  bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Active() {
			cancelled = b
			return nil
		}

		cancelled, err = s.repo.SetStatus(ctx, b.ID, models.BookingStatusCancelled, nil)
		if err != nil {
			return err
		}
		if err := s.repo.AdjustRemaining(ctx, b.ScheduleID, b.Seats); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Release failed")
		l.Error("Failed to release booking", zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("released", released))
	if !released {
		l.Debug("Booking already cancelled")
		return cancelled, nil
	}

	metrics.Get().ReleasedSeatsTotal.Add(ctx, int64(cancelled.Seats))
	l.Info("Seats released", zap.Int("seats", cancelled.Seats))
	s.publish(ctx, QueueBookingCancelled, cancelled)
	return cancelled, nil
}

// Confirm records the external payment reference. Confirming twice with the
// same reference is a no-op; a different reference or a cancelled booking is
// a conflict.
func (s *ServiceImpl) Confirm(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error) {
	l := s.logger.With(zap.String("method", "Confirm"), zap.String("booking_id", bookingID.String()))

	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, fmt.Errorf("payment reference is required: %w", models.ErrValidation)
	}

	var (
		confirmed *models.Booking
		changed   bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case models.BookingStatusCancelled:
			return fmt.Errorf("booking %s is cancelled: %w", b.ID, models.ErrConflict)
		case models.BookingStatusConfirmed:
			if b.PaymentRef != nil && *b.PaymentRef == paymentRef {
				confirmed = b
				return nil
			}
			return fmt.Errorf("booking %s already confirmed with another payment: %w", b.ID, models.ErrConflict)
		}

		confirmed, err = s.repo.SetStatus(ctx, b.ID, models.BookingStatusConfirmed, &paymentRef)
		changed = err == nil
		return err
	})
	if err != nil {
		l.Error("Failed to confirm booking", zap.Error(err))
		return nil, err
	}

	if changed {
		l.Info("Booking confirmed")
		s.publish(ctx, QueueBookingConfirmed, confirmed)
	}
	return confirmed, nil
}

func (s *ServiceImpl) GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, bookingID)
}

func (s *ServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Authorize returns the booking when userID made it.
func (s *ServiceImpl) Authorize(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, fmt.Errorf("booking %s belongs to another user: %w", bookingID, models.ErrForbidden)
	}
	return b, nil
}

// ReleaseItems cancels the active bookings on the scoped itinerary items and
// credits their seats back, ahead of the items being deleted. Run it inside
// the transaction that deletes them. Returns the number of seats credited.
func (s *ServiceImpl) ReleaseItems(ctx context.Context, scope models.ItemScope) (int, error) {
	l := s.logger.With(zap.String("method", "ReleaseItems"),
		zap.String("itinerary_id", scope.ItineraryID.String()),
		zap.String("item_id", scope.ItemID.String()))

	var seats int
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cancelled, err := s.repo.CancelActiveOnItems(ctx, scope)
		if err != nil {
			return err
		}
		perSchedule := make(map[uuid.UUID]int)
		for _, b := range cancelled {
			perSchedule[b.ScheduleID] += b.Seats
		}
		// Fixed order keeps schedule row locks from deadlocking.
		ids := slices.SortedFunc(maps.Keys(perSchedule), func(a, b uuid.UUID) int {
			return bytes.Compare(a[:], b[:])
		})
		for _, id := range ids {
			if err := s.repo.AdjustRemaining(ctx, id, perSchedule[id]); err != nil {
				return err
			}
			seats += perSchedule[id]
		}
		return nil
	})
	if err != nil {
		l.Error("Failed to release bookings on removed items", zap.Error(err))
		return 0, err
	}
	if seats > 0 {
		metrics.Get().ReleasedSeatsTotal.Add(ctx, int64(seats))
		l.Info("Seats released for removed items", zap.Int("seats", seats))
	}
	return seats, nil
}

// publish runs after commit. The booking is already durable, so a broker
// failure is logged and not returned.
func (s *ServiceImpl) publish(ctx context.Context, queue string, b *models.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, queue, newEvent(b)); err != nil {
		s.logger.Warn("Failed to publish booking event",
			zap.String("queue", queue),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err))
	}
}
