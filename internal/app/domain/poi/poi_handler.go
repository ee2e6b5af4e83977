package poi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain"
	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

type Handler struct {
	*domain.BaseHandler
	service         Service
	defaultLanguage string
}

func NewHandler(service Service, defaultLanguage string, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler:     domain.NewBaseHandler(logger),
		service:         service,
		defaultLanguage: defaultLanguage,
	}
}

type createPOIRequest struct {
	Name         string                             `json:"name" binding:"required"`
	Location     models.Point                       `json:"location"`
	Translations map[string]models.TranslationInput `json:"translations"`
}

func (h *Handler) CreatePOI(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	var req createPOIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	created, err := h.service.CreatePOI(c.Request.Context(), models.CreatePOIParams{
		OperatorID:   userID,
		Name:         req.Name,
		Location:     req.Location,
		Translations: req.Translations,
	})
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPOI(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetPOI(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPOIs(c *gin.Context) {
	page, ok := h.QueryInt(c, "page", 1)
	if !ok {
		return
	}
	result, err := h.service.ListPOIs(c.Request.Context(), page)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// operated resolves :id and answers 403 unless the caller operates the POI.
func (h *Handler) operated(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}
	if err := h.service.AuthorizeOperator(c.Request.Context(), id, userID); err != nil {
		h.RespondError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) UpdatePOI(c *gin.Context) {
	id, ok := h.operated(c)
	if !ok {
		return
	}
	var patch models.POIPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	updated, err := h.service.UpdatePOI(c.Request.Context(), id, patch)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePOI(c *gin.Context) {
	id, ok := h.operated(c)
	if !ok {
		return
	}
	if err := h.service.DeletePOI(c.Request.Context(), id); err != nil {
		h.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddTranslations(c *gin.Context) {
	id, ok := h.operated(c)
	if !ok {
		return
	}
	var req map[string]models.TranslationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	translations, err := h.service.AddTranslations(c.Request.Context(), id, req)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, translations)
}

func (h *Handler) ListTranslations(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	translations, err := h.service.ListTranslations(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, translations)
}

// GetLocalizedPOI resolves the language from ?lang=, then Accept-Language,
// then the configured default.
func (h *Handler) GetLocalizedPOI(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	lang := c.Query("lang")
	if lang == "" {
		lang = PreferredLanguage(c.GetHeader("Accept-Language"), h.defaultLanguage)
	}
	localized, err := h.service.GetLocalizedPOI(c.Request.Context(), id, lang)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, localized)
}

func (h *Handler) GetPOIRating(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	rated, err := h.service.GetPOIWithRating(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rated)
}

func (h *Handler) center(c *gin.Context) (models.Point, bool) {
	lon, ok := h.QueryFloat(c, "lon")
	if !ok {
		return models.Point{}, false
	}
	lat, ok := h.QueryFloat(c, "lat")
	if !ok {
		return models.Point{}, false
	}
	p, err := models.NewPoint(lon, lat)
	if err != nil {
		h.RespondError(c, err)
		return models.Point{}, false
	}
	return p, true
}

func (h *Handler) SearchWithinRadius(c *gin.Context) {
	center, ok := h.center(c)
	if !ok {
		return
	}
	radius, ok := h.QueryFloat(c, "radius_km")
	if !ok {
		return
	}
	limit, ok := h.QueryInt(c, "limit", 0)
	if !ok {
		return
	}
	results, err := h.service.SearchWithinRadius(c.Request.Context(), models.POIFilter{
		Center:   center,
		RadiusKm: radius,
		Limit:    limit,
	})
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) OrderByDistance(c *gin.Context) {
	center, ok := h.center(c)
	if !ok {
		return
	}
	limit, ok := h.QueryInt(c, "limit", 0)
	if !ok {
		return
	}
	results, err := h.service.OrderByDistance(c.Request.Context(), center, limit)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
