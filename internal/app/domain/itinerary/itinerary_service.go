package itinerary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	"github.com/FACorreiaa/go-tourbook/internal/app/observability/metrics"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	CreateItinerary(ctx context.Context, userID uuid.UUID, name string) (*models.Itinerary, error)
	GetItinerary(ctx context.Context, id uuid.UUID) (*models.Itinerary, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error)
	RenameItinerary(ctx context.Context, id uuid.UUID, name string) (*models.Itinerary, error)
	DeleteItinerary(ctx context.Context, id uuid.UUID) error
	Authorize(ctx context.Context, itineraryID, userID uuid.UUID) error

	// Planner
	AddItem(ctx context.Context, params models.AddItemParams) (*models.ItineraryItem, error)
	ValidateItem(ctx context.Context, params models.AddItemParams) error
	RemoveItem(ctx context.Context, itineraryID, itemID uuid.UUID) error
	ListItems(ctx context.Context, itineraryID uuid.UUID) ([]models.ItineraryItem, error)
}

// SeatReleaser gives back the seats held by bookings on items that are about
// to be deleted. It must join the transaction found in ctx.
type SeatReleaser interface {
	ReleaseItems(ctx context.Context, scope models.ItemScope) (int, error)
}

type noopReleaser struct{}

func (noopReleaser) ReleaseItems(context.Context, models.ItemScope) (int, error) { return 0, nil }

type ServiceImpl struct {
	logger   *zap.Logger
	repo     Repository
	tx       database.Transactor
	releaser SeatReleaser
}

func NewServiceImpl(repo Repository, tx database.Transactor, releaser SeatReleaser, logger *zap.Logger) *ServiceImpl {
	if releaser == nil {
		releaser = noopReleaser{}
	}
	return &ServiceImpl{logger: logger, repo: repo, tx: tx, releaser: releaser}
}

// Authorize fails with ErrForbidden unless userID owns the itinerary.
func (s *ServiceImpl) Authorize(ctx context.Context, itineraryID, userID uuid.UUID) error {
	owner, err := s.repo.ItineraryOwner(ctx, itineraryID)
	if err != nil {
		return err
	}
	if owner != userID {
		return fmt.Errorf("itinerary %s belongs to another user: %w", itineraryID, models.ErrForbidden)
	}
	return nil
}

// FindConflict returns the first existing item whose [start, end) interval
// intersects the candidate one. Touching boundaries are not a conflict.
func FindConflict(existing []models.ItineraryItem, start, end models.TimeOfDay) (*models.ItineraryItem, bool) {
	for i := range existing {
		if existing[i].Overlaps(start, end) {
			return &existing[i], true
		}
	}
	return nil, false
}

func validateSlot(params models.AddItemParams) error {
	if params.Date.IsZero() {
		return fmt.Errorf("date is required: %w", models.ErrValidation)
	}
	if !params.StartTime.Valid() || !params.EndTime.Valid() {
		return fmt.Errorf("times must fall within the day: %w", models.ErrValidation)
	}
	if params.EndTime <= params.StartTime {
		return fmt.Errorf("end time %s must be after start time %s: %w", params.EndTime, params.StartTime, models.ErrValidation)
	}
	if params.Order != nil && *params.Order < 0 {
		return fmt.Errorf("order must not be negative: %w", models.ErrValidation)
	}
	return nil
}

func (s *ServiceImpl) checkOverlap(ctx context.Context, params models.AddItemParams) error {
	existing, err := s.repo.ItemsForDay(ctx, params.ItineraryID, params.Date)
	if err != nil {
		return err
	}
	if conflict, found := FindConflict(existing, params.StartTime, params.EndTime); found {
		metrics.Get().ItineraryOverlapRejection.Add(ctx, 1)
		return fmt.Errorf("[%s, %s) overlaps item %s [%s, %s) on %s: %w",
			params.StartTime, params.EndTime, conflict.ID, conflict.StartTime, conflict.EndTime,
			params.Date, models.ErrTimeOverlap)
	}
	return nil
}

// AddItem validates the slot against the day's existing items and stores it.
// The check and the insert share a transaction holding the day lock, so two
// concurrent adds cannot both pass the overlap check.
func (s *ServiceImpl) AddItem(ctx context.Context, params models.AddItemParams) (*models.ItineraryItem, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "AddItem", trace.WithAttributes(
		attribute.String("itinerary.id", params.ItineraryID.String()),
		attribute.String("date", params.Date.String()),
	))
	defer span.End()
	l := s.logger.With(zap.String("method", "AddItem"),
		zap.String("itinerary_id", params.ItineraryID.String()),
		zap.String("date", params.Date.String()))

	if err := validateSlot(params); err != nil {
		return nil, err
	}

	var created *models.ItineraryItem
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDay(ctx, params.ItineraryID, params.Date); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, params); err != nil {
			return err
		}

		order := 0
		if params.Order != nil {
			order = *params.Order
		} else {
			next, err := s.repo.NextOrder(ctx, params.ItineraryID, params.Date)
			if err != nil {
				return err
			}
			order = next
		}

		var err error
		created, err = s.repo.InsertItem(ctx, models.ItineraryItem{
			ItineraryID: params.ItineraryID,
			POIID:       params.POIID,
			Date:        params.Date,
			StartTime:   params.StartTime,
			EndTime:     params.EndTime,
			Order:       order,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Item rejected")
		l.Info("Itinerary item rejected", zap.Error(err))
		return nil, err
	}

	l.Info("Itinerary item added", zap.String("item_id", created.ID.String()), zap.Int("order", created.Order))
	return created, nil
}

// ValidateItem runs the AddItem checks without writing anything.
func (s *ServiceImpl) ValidateItem(ctx context.Context, params models.AddItemParams) error {
	if err := validateSlot(params); err != nil {
		return err
	}
	if _, err := s.repo.ItineraryOwner(ctx, params.ItineraryID); err != nil {
		return err
	}
	return s.checkOverlap(ctx, params)
}

// RemoveItem deletes an item of the given itinerary after cancelling its
// active bookings and crediting their seats. Orders of the remaining items
// are left as is.
func (s *ServiceImpl) RemoveItem(ctx context.Context, itineraryID, itemID uuid.UUID) error {
	l := s.logger.With(zap.String("method", "RemoveItem"), zap.String("item_id", itemID.String()))

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.ItineraryID != itineraryID {
			return fmt.Errorf("item %s in itinerary %s: %w", itemID, itineraryID, models.ErrNotFound)
		}
		if _, err := s.releaser.ReleaseItems(ctx, models.ItemScope{ItineraryID: itineraryID, ItemID: itemID}); err != nil {
			return err
		}
		return s.repo.DeleteItem(ctx, itemID)
	})
	if err != nil {
		l.Error("Failed to remove itinerary item", zap.Error(err))
		return err
	}
	l.Info("Itinerary item removed")
	return nil
}

func (s *ServiceImpl) ListItems(ctx context.Context, itineraryID uuid.UUID) ([]models.ItineraryItem, error) {
	it, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, err
	}
	return it.Items, nil
}

func (s *ServiceImpl) CreateItinerary(ctx context.Context, userID uuid.UUID, name string) (*models.Itinerary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("itinerary name is required: %w", models.ErrValidation)
	}
	it, err := s.repo.CreateItinerary(ctx, userID, name)
	if err != nil {
		s.logger.Error("Failed to create itinerary", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}
	return it, nil
}

func (s *ServiceImpl) GetItinerary(ctx context.Context, id uuid.UUID) (*models.Itinerary, error) {
	return s.repo.GetItinerary(ctx, id)
}

func (s *ServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *ServiceImpl) RenameItinerary(ctx context.Context, id uuid.UUID, name string) (*models.Itinerary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("itinerary name is required: %w", models.ErrValidation)
	}
	return s.repo.RenameItinerary(ctx, id, name)
}

// DeleteItinerary releases the seats booked on any of its items before the
// items cascade away with it.
func (s *ServiceImpl) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.releaser.ReleaseItems(ctx, models.ItemScope{ItineraryID: id}); err != nil {
			return err
		}
		return s.repo.DeleteItinerary(ctx, id)
	})
}
