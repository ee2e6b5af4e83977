package schedule

import (
	"context"
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
	CreateSchedule(ctx context.Context, params models.CreateScheduleParams) (*models.AttractionSchedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.AttractionSchedule, error)
	ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.AttractionSchedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, patch models.SchedulePatch) (*models.AttractionSchedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	// Ownership
	POIOperator(ctx context.Context, poiID uuid.UUID) (uuid.UUID, error)
	ScheduleOperator(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error)
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

const scheduleColumns = `id, poi_id, start_at, end_at, total_capacity, remaining_capacity, is_active`

// ScanSchedule reads the scheduleColumns projection.
func ScanSchedule(row pgx.Row, s *models.AttractionSchedule) error {
	return row.Scan(&s.ID, &s.POIID, &s.Start, &s.End, &s.TotalCapacity, &s.RemainingCapacity, &s.IsActive)
}

func (r *RepositoryImpl) CreateSchedule(ctx context.Context, params models.CreateScheduleParams) (*models.AttractionSchedule, error) {
	ctx, span := otel.Tracer("ScheduleRepository").Start(ctx, "CreateSchedule", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("poi.id", params.POIID.String()),
	))
	defer span.End()

	remaining := params.TotalCapacity
	if params.RemainingCapacity != nil {
		remaining = *params.RemainingCapacity
	}
	active := true
	if params.IsActive != nil {
		active = *params.IsActive
	}

	query := `
		INSERT INTO attraction_schedules (poi_id, start_at, end_at, total_capacity, remaining_capacity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + scheduleColumns

	var s models.AttractionSchedule
	err := ScanSchedule(database.Executor(ctx, r.pgpool).QueryRow(ctx, query,
		params.POIID, params.Start, params.End, params.TotalCapacity, remaining, active,
	), &s)
	if err != nil {
		err = database.Classify("insert schedule", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create schedule")
		r.logger.Error("Failed to create schedule", zap.String("poi_id", params.POIID.String()), zap.Error(err))
		return nil, err
	}
	span.SetStatus(codes.Ok, "Schedule created")
	return &s, nil
}

func (r *RepositoryImpl) GetSchedule(ctx context.Context, id uuid.UUID) (*models.AttractionSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM attraction_schedules WHERE id = $1`
	var s models.AttractionSchedule
	if err := ScanSchedule(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, id), &s); err != nil {
		return nil, database.Classify("get schedule", err)
	}
	return &s, nil
}

func (r *RepositoryImpl) ListByPOI(ctx context.Context, poiID uuid.UUID) ([]models.AttractionSchedule, error) {
	ctx, span := otel.Tracer("ScheduleRepository").Start(ctx, "ListByPOI", trace.WithAttributes(
		attribute.String("poi.id", poiID.String()),
	))
	defer span.End()

	query := `SELECT ` + scheduleColumns + ` FROM attraction_schedules WHERE poi_id = $1 ORDER BY start_at, id`
	rows, err := r.pgpool.Query(ctx, query, poiID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]models.AttractionSchedule, 0)
	for rows.Next() {
		var s models.AttractionSchedule
		if err := ScanSchedule(rows, &s); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return schedules, nil
}

func (r *RepositoryImpl) UpdateSchedule(ctx context.Context, id uuid.UUID, patch models.SchedulePatch) (*models.AttractionSchedule, error) {
	ctx, span := otel.Tracer("ScheduleRepository").Start(ctx, "UpdateSchedule", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("schedule.id", id.String()),
	))
	defer span.End()

	builder := r.psql.Update("attraction_schedules").
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + scheduleColumns)
	if patch.Start != nil {
		builder = builder.Set("start_at", *patch.Start)
	}
	if patch.End != nil {
		builder = builder.Set("end_at", *patch.End)
	}
	if patch.IsActive != nil {
		builder = builder.Set("is_active", *patch.IsActive)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule update: %w", err)
	}

	var s models.AttractionSchedule
	if err := ScanSchedule(database.Executor(ctx, r.pgpool).QueryRow(ctx, query, args...), &s); err != nil {
		err = database.Classify("update schedule", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Schedule updated")
	return &s, nil
}

func (r *RepositoryImpl) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM attraction_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) POIOperator(ctx context.Context, poiID uuid.UUID) (uuid.UUID, error) {
	var operator uuid.UUID
	err := r.pgpool.QueryRow(ctx, `SELECT operator_id FROM points_of_interest WHERE id = $1`, poiID).Scan(&operator)
	if err != nil {
		return uuid.Nil, database.Classify("poi operator", err)
	}
	return operator, nil
}

// ScheduleOperator is the operator of the POI the schedule belongs to.
func (r *RepositoryImpl) ScheduleOperator(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error) {
	const query = `
		SELECT p.operator_id
		FROM attraction_schedules s
		JOIN points_of_interest p ON p.id = s.poi_id
		WHERE s.id = $1`
	var operator uuid.UUID
	if err := r.pgpool.QueryRow(ctx, query, scheduleID).Scan(&operator); err != nil {
		return uuid.Nil, database.Classify("schedule operator", err)
	}
	return operator, nil
}
