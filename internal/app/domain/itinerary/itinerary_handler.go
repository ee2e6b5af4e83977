package itinerary

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
	service Service
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{BaseHandler: domain.NewBaseHandler(logger), service: service}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

type addItemRequest struct {
	POIID     uuid.UUID        `json:"poi_id" binding:"required"`
	Date      models.Date      `json:"date"`
	StartTime models.TimeOfDay `json:"start_time"`
	EndTime   models.TimeOfDay `json:"end_time"`
	Order     *int             `json:"order"`
}

func (h *Handler) CreateItinerary(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	it, err := h.service.CreateItinerary(c.Request.Context(), userID, req.Name)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	list, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetItinerary(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	it, err := h.service.GetItinerary(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// authorize resolves :id and answers 403 unless the caller owns it.
func (h *Handler) authorize(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}
	if err := h.service.Authorize(c.Request.Context(), id, userID); err != nil {
		h.RespondError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) RenameItinerary(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	it, err := h.service.RenameItinerary(c.Request.Context(), id, req.Name)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) DeleteItinerary(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	if err := h.service.DeleteItinerary(c.Request.Context(), id); err != nil {
		h.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindItem(c *gin.Context) (models.AddItemParams, bool) {
	id, ok := h.authorize(c)
	if !ok {
		return models.AddItemParams{}, false
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return models.AddItemParams{}, false
	}
	return models.AddItemParams{
		ItineraryID: id,
		POIID:       req.POIID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Order:       req.Order,
	}, true
}

func (h *Handler) AddItem(c *gin.Context) {
	params, ok := h.bindItem(c)
	if !ok {
		return
	}
	item, err := h.service.AddItem(c.Request.Context(), params)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// ValidateItem answers 200 {"valid": true} when AddItem would accept the slot.
func (h *Handler) ValidateItem(c *gin.Context) {
	params, ok := h.bindItem(c)
	if !ok {
		return
	}
	if err := h.service.ValidateItem(c.Request.Context(), params); err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *Handler) ListItems(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.service.ListItems(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	itemID, ok := h.UUIDParam(c, "itemID")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(c.Request.Context(), id, itemID); err != nil {
		h.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
