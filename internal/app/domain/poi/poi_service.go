package poi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/geo"
	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	"github.com/FACorreiaa/go-tourbook/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-tourbook/internal/pkg/cache"
)

var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for POI operations.
type Service interface {
	CreatePOI(ctx context.Context, params models.CreatePOIParams) (*models.PointOfInterest, error)
	GetPOI(ctx context.Context, id uuid.UUID) (*models.PointOfInterest, error)
	ListPOIs(ctx context.Context, page int) (*models.POIPage, error)
	UpdatePOI(ctx context.Context, id uuid.UUID, patch models.POIPatch) (*models.PointOfInterest, error)
	DeletePOI(ctx context.Context, id uuid.UUID) error
	AuthorizeOperator(ctx context.Context, poiID, userID uuid.UUID) error

	// Translations
	AddTranslations(ctx context.Context, poiID uuid.UUID, translations map[string]models.TranslationInput) ([]models.POITranslation, error)
	ListTranslations(ctx context.Context, poiID uuid.UUID) ([]models.POITranslation, error)
	GetLocalizedPOI(ctx context.Context, id uuid.UUID, languageCode string) (*models.LocalizedPOI, error)

	// Search
	SearchWithinRadius(ctx context.Context, filter models.POIFilter) ([]models.POIWithDistance, error)
	OrderByDistance(ctx context.Context, center models.Point, limit int) ([]models.POIWithDistance, error)
	GetPOIWithRating(ctx context.Context, id uuid.UUID) (*models.POIWithRating, error)
}

type ServiceImpl struct {
	logger        *zap.Logger
	poiRepository Repository
	translations  *cache.UnifiedCache[*models.POITranslation]
	pageSize      int
}

func NewServiceImpl(poiRepository Repository, pageSize int, logger *zap.Logger) *ServiceImpl {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &ServiceImpl{
		logger:        logger,
		poiRepository: poiRepository,
		translations:  cache.NewUnifiedCache[*models.POITranslation](5*time.Minute, 10*time.Minute, "poi_translations", logger),
		pageSize:      pageSize,
	}
}

func translationKey(poiID uuid.UUID, code string) string {
	return poiID.String() + ":" + code
}

func (s *ServiceImpl) invalidateTranslations(poiID uuid.UUID) {
	s.translations.DeletePrefix(poiID.String() + ":")
}

func normalizeTranslations(in map[string]models.TranslationInput) (map[string]models.TranslationInput, error) {
	out := make(map[string]models.TranslationInput, len(in))
	for code, t := range in {
		normalized, err := NormalizeLanguage(code)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("translation %s has no name: %w", normalized, models.ErrValidation)
		}
		out[normalized] = t
	}
	return out, nil
}

func (s *ServiceImpl) CreatePOI(ctx context.Context, params models.CreatePOIParams) (*models.PointOfInterest, error) {
	l := s.logger.With(zap.String("method", "CreatePOI"))

	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("poi name is required: %w", models.ErrValidation)
	}
	if !params.Location.Valid() {
		return nil, fmt.Errorf("poi location %v: %w", params.Location, models.ErrInvalidGeometry)
	}
	translations, err := normalizeTranslations(params.Translations)
	if err != nil {
		return nil, err
	}
	params.Translations = translations

	created, err := s.poiRepository.CreatePOI(ctx, params)
	if err != nil {
		l.Error("Failed to create POI", zap.Error(err))
		return nil, err
	}
	l.Info("POI created", zap.String("poi_id", created.ID.String()), zap.Int("translations", len(translations)))
	return created, nil
}

func (s *ServiceImpl) GetPOI(ctx context.Context, id uuid.UUID) (*models.PointOfInterest, error) {
	p, err := s.poiRepository.GetPOI(ctx, id)
	if err != nil {
		return nil, err
	}
	translations, err := s.poiRepository.ListTranslations(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Translations = translations
	return p, nil
}

func (s *ServiceImpl) ListPOIs(ctx context.Context, page int) (*models.POIPage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * s.pageSize
	pois, total, err := s.poiRepository.ListPOIs(ctx, s.pageSize, offset)
	if err != nil {
		s.logger.Error("Failed to list POIs", zap.Int("page", page), zap.Error(err))
		return nil, err
	}
	return &models.POIPage{
		Items:    pois,
		Page:     page,
		PageSize: s.pageSize,
		Total:    total,
	}, nil
}

func (s *ServiceImpl) UpdatePOI(ctx context.Context, id uuid.UUID, patch models.POIPatch) (*models.PointOfInterest, error) {
	l := s.logger.With(zap.String("method", "UpdatePOI"), zap.String("poi_id", id.String()))

	if patch.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", models.ErrValidation)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("poi name cannot be blank: %w", models.ErrValidation)
	}
	if patch.Location != nil && !patch.Location.Valid() {
		return nil, fmt.Errorf("poi location %v: %w", *patch.Location, models.ErrInvalidGeometry)
	}

	updated, err := s.poiRepository.UpdatePOI(ctx, id, patch)
	if err != nil {
		l.Error("Failed to update POI", zap.Error(err))
		return nil, err
	}
	// Cached fallbacks embed the default name.
	if patch.Name != nil {
		s.invalidateTranslations(id)
	}
	return updated, nil
}

// AuthorizeOperator fails with ErrForbidden unless userID operates the POI.
func (s *ServiceImpl) AuthorizeOperator(ctx context.Context, poiID, userID uuid.UUID) error {
	p, err := s.poiRepository.GetPOI(ctx, poiID)
	if err != nil {
		return err
	}
	if p.OperatorID != userID {
		return fmt.Errorf("poi %s is run by another operator: %w", poiID, models.ErrForbidden)
	}
	return nil
}

func (s *ServiceImpl) DeletePOI(ctx context.Context, id uuid.UUID) error {
	if err := s.poiRepository.DeletePOI(ctx, id); err != nil {
		s.logger.Error("Failed to delete POI", zap.String("poi_id", id.String()), zap.Error(err))
		return err
	}
	s.invalidateTranslations(id)
	return nil
}

// AddTranslations creates missing languages only. Existing rows are kept as
// they are and the full resulting set is returned.
func (s *ServiceImpl) AddTranslations(ctx context.Context, poiID uuid.UUID, translations map[string]models.TranslationInput) ([]models.POITranslation, error) {
	if len(translations) == 0 {
		return nil, fmt.Errorf("no translations given: %w", models.ErrValidation)
	}
	normalized, err := normalizeTranslations(translations)
	if err != nil {
		return nil, err
	}

	exists, err := s.poiRepository.CheckPOIExists(ctx, poiID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("poi %s: %w", poiID, models.ErrNotFound)
	}

	if err := s.poiRepository.AddTranslations(ctx, poiID, normalized); err != nil {
		return nil, err
	}
	s.invalidateTranslations(poiID)
	return s.poiRepository.ListTranslations(ctx, poiID)
}

func (s *ServiceImpl) ListTranslations(ctx context.Context, poiID uuid.UUID) ([]models.POITranslation, error) {
	exists, err := s.poiRepository.CheckPOIExists(ctx, poiID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("poi %s: %w", poiID, models.ErrNotFound)
	}
	return s.poiRepository.ListTranslations(ctx, poiID)
}

// lookupTranslation reads through the cache. A nil result is cached as well
// so untranslated languages do not hit the database on every request.
func (s *ServiceImpl) lookupTranslation(ctx context.Context, poiID uuid.UUID, code string) (*models.POITranslation, error) {
	key := translationKey(poiID, code)
	if t, found := s.translations.Get(key); found {
		return t, nil
	}
	t, err := s.poiRepository.GetTranslation(ctx, poiID, code)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		t = nil
	}
	s.translations.Set(key, t)
	return t, nil
}

// GetLocalizedPOI renders a POI in languageCode, trying the region-less base
// language next and falling back to the default name with an empty
// description.
func (s *ServiceImpl) GetLocalizedPOI(ctx context.Context, id uuid.UUID, languageCode string) (*models.LocalizedPOI, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "GetLocalizedPOI", trace.WithAttributes(
		attribute.String("poi.id", id.String()),
		attribute.String("language", languageCode),
	))
	defer span.End()

	code, err := NormalizeLanguage(languageCode)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p, err := s.poiRepository.GetPOI(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "POI not loaded")
		return nil, err
	}

	localized := &models.LocalizedPOI{
		PointOfInterest: *p,
		LanguageCode:    code,
	}
	for _, candidate := range lookupChain(code) {
		t, err := s.lookupTranslation(ctx, id, candidate)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if t != nil {
			localized.Name = t.Name
			localized.Description = t.Description
			localized.LanguageCode = t.LanguageCode
			span.SetAttributes(attribute.Bool("translation.found", true))
			return localized, nil
		}
	}

	span.SetAttributes(attribute.Bool("translation.found", false))
	return localized, nil
}

func toDistanceResults(hits []geo.Hit[models.POIWithRating]) []models.POIWithDistance {
	out := make([]models.POIWithDistance, len(hits))
	for i, h := range hits {
		out[i] = models.POIWithDistance{
			PointOfInterest: h.Item.PointOfInterest,
			DistanceKm:      h.DistanceKm,
			AvgRating:       h.Item.AvgRating,
		}
	}
	return out
}

// SearchWithinRadius returns the POIs at most filter.RadiusKm from
// filter.Center, nearest first. The boundary is inclusive.
func (s *ServiceImpl) SearchWithinRadius(ctx context.Context, filter models.POIFilter) ([]models.POIWithDistance, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "SearchWithinRadius", trace.WithAttributes(
		attribute.Float64("location.latitude", filter.Center.Latitude),
		attribute.Float64("location.longitude", filter.Center.Longitude),
		attribute.Float64("radius_km", filter.RadiusKm),
	))
	defer span.End()
	l := s.logger.With(zap.String("method", "SearchWithinRadius"))

	if !filter.Center.Valid() {
		return nil, fmt.Errorf("search centre %v: %w", filter.Center, models.ErrInvalidGeometry)
	}
	if filter.RadiusKm < 0 || math.IsNaN(filter.RadiusKm) || math.IsInf(filter.RadiusKm, 0) {
		return nil, fmt.Errorf("radius %.3f km: %w", filter.RadiusKm, models.ErrValidation)
	}
	metrics.Get().SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "radius")))

	candidates, err := s.poiRepository.FindWithinRadius(ctx, filter.Center, geo.BoundingRadiusMeters(filter.RadiusKm))
	if err != nil {
		l.Error("Radius prefilter failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, err
	}

	hits := geo.WithinRadius(candidates, filter.Center, filter.RadiusKm)
	hits = geo.OrderByDistance(hitItems(hits), filter.Center)
	if filter.Limit > 0 && len(hits) > filter.Limit {
		hits = hits[:filter.Limit]
	}

	l.Debug("Radius search completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(hits)))
	span.SetAttributes(attribute.Int("results.count", len(hits)))
	span.SetStatus(codes.Ok, "Search completed")
	return toDistanceResults(hits), nil
}

func hitItems[T geo.Located](hits []geo.Hit[T]) []T {
	items := make([]T, len(hits))
	for i, h := range hits {
		items[i] = h.Item
	}
	return items
}

// OrderByDistance returns up to limit POIs sorted by distance from center.
func (s *ServiceImpl) OrderByDistance(ctx context.Context, center models.Point, limit int) ([]models.POIWithDistance, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("search centre %v: %w", center, models.ErrInvalidGeometry)
	}
	if limit <= 0 {
		limit = s.pageSize
	}
	metrics.Get().SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "nearest")))

	candidates, err := s.poiRepository.FindNearest(ctx, center, limit)
	if err != nil {
		s.logger.Error("Nearest search failed", zap.Error(err))
		return nil, err
	}
	return toDistanceResults(geo.OrderByDistance(candidates, center)), nil
}

func (s *ServiceImpl) GetPOIWithRating(ctx context.Context, id uuid.UUID) (*models.POIWithRating, error) {
	return s.poiRepository.GetPOIWithRating(ctx, id)
}
