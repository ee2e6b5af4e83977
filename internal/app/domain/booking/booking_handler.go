package booking

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

type reserveRequest struct {
	ItineraryItemID uuid.UUID `json:"itinerary_item_id" binding:"required"`
	ScheduleID      uuid.UUID `json:"schedule_id" binding:"required"`
	Seats           *int      `json:"seats"`
}

type confirmRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// Reserve defaults to one seat when the body omits it.
func (h *Handler) Reserve(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	seats := 1
	if req.Seats != nil {
		seats = *req.Seats
	}

	b, err := h.service.Reserve(c.Request.Context(), models.ReserveParams{
		UserID:          userID,
		ItineraryItemID: req.ItineraryItemID,
		ScheduleID:      req.ScheduleID,
		Seats:           seats,
	})
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// owned resolves the :id booking and answers 403 unless the caller made it.
func (h *Handler) owned(c *gin.Context) (*models.Booking, bool) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return nil, false
	}
	b, err := h.service.Authorize(c.Request.Context(), id, userID)
	if err != nil {
		h.RespondError(c, err)
		return nil, false
	}
	return b, true
}

func (h *Handler) Cancel(c *gin.Context) {
	owned, ok := h.owned(c)
	if !ok {
		return
	}
	b, err := h.service.Release(c.Request.Context(), owned.ID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) Confirm(c *gin.Context) {
	owned, ok := h.owned(c)
	if !ok {
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	b, err := h.service.Confirm(c.Request.Context(), owned.ID, req.PaymentRef)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	bookings, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
