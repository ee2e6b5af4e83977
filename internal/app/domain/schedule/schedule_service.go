package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	CreateSchedule(ctx context.Context, params models.CreateScheduleParams) (*models.AttractionSchedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.AttractionSchedule, error)
	ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.AttractionSchedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, patch models.SchedulePatch) (*models.AttractionSchedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	AuthorizePOI(ctx context.Context, poiID, userID uuid.UUID) error
	AuthorizeSchedule(ctx context.Context, scheduleID, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo}
}

func (s *ServiceImpl) CreateSchedule(ctx context.Context, params models.CreateScheduleParams) (*models.AttractionSchedule, error) {
	l := s.logger.With(zap.String("method", "CreateSchedule"), zap.String("poi_id", params.POIID.String()))

	if !params.End.After(params.Start) {
		return nil, fmt.Errorf("schedule must end after it starts: %w", models.ErrValidation)
	}
	if params.TotalCapacity < 0 {
		return nil, fmt.Errorf("total capacity %d: %w", params.TotalCapacity, models.ErrValidation)
	}
	if r := params.RemainingCapacity; r != nil && (*r < 0 || *r > params.TotalCapacity) {
		return nil, fmt.Errorf("remaining capacity %d outside [0, %d]: %w", *r, params.TotalCapacity, models.ErrValidation)
	}

	created, err := s.repo.CreateSchedule(ctx, params)
	if err != nil {
		l.Error("Failed to create schedule", zap.Error(err))
		return nil, err
	}
	l.Info("Schedule created",
		zap.String("schedule_id", created.ID.String()),
		zap.Int("capacity", created.TotalCapacity))
	return created, nil
}

func (s *ServiceImpl) GetSchedule(ctx context.Context, id uuid.UUID) (*models.AttractionSchedule, error) {
	return s.repo.GetSchedule(ctx, id)
}

func (s *ServiceImpl) ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.AttractionSchedule, error) {
	return s.repo.ListByPOI(ctx, poiID)
}

// UpdateSchedule applies a partial patch. The window is checked against the
// stored values for whichever bound the patch leaves alone.
func (s *ServiceImpl) UpdateSchedule(ctx context.Context, id uuid.UUID, patch models.SchedulePatch) (*models.AttractionSchedule, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", models.ErrValidation)
	}

	if patch.Start != nil || patch.End != nil {
		current, err := s.repo.GetSchedule(ctx, id)
		if err != nil {
			return nil, err
		}
		start, end := current.Start, current.End
		if patch.Start != nil {
			start = *patch.Start
		}
		if patch.End != nil {
			end = *patch.End
		}
		if !end.After(start) {
			return nil, fmt.Errorf("schedule must end after it starts: %w", models.ErrValidation)
		}
	}

	updated, err := s.repo.UpdateSchedule(ctx, id, patch)
	if err != nil {
		s.logger.Error("Failed to update schedule", zap.String("schedule_id", id.String()), zap.Error(err))
		return nil, err
	}
	return updated, nil
}

func (s *ServiceImpl) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSchedule(ctx, id)
}

// AuthorizePOI fails with ErrForbidden unless userID operates the POI.
func (s *ServiceImpl) AuthorizePOI(ctx context.Context, poiID, userID uuid.UUID) error {
	operator, err := s.repo.POIOperator(ctx, poiID)
	if err != nil {
		return err
	}
	if operator != userID {
		return fmt.Errorf("poi %s is run by another operator: %w", poiID, models.ErrForbidden)
	}
	return nil
}

func (s *ServiceImpl) AuthorizeSchedule(ctx context.Context, scheduleID, userID uuid.UUID) error {
	operator, err := s.repo.ScheduleOperator(ctx, scheduleID)
	if err != nil {
		return err
	}
	if operator != userID {
		return fmt.Errorf("schedule %s is run by another operator: %w", scheduleID, models.ErrForbidden)
	}
	return nil
}
