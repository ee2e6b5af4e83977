package schedule

import (
	"context"
	"net/http"
	"time"

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

type createScheduleRequest struct {
	Start             time.Time `json:"start" binding:"required"`
	End               time.Time `json:"end" binding:"required"`
	TotalCapacity     int       `json:"total_capacity"`
	RemainingCapacity *int      `json:"remaining_capacity"`
	IsActive          *bool     `json:"is_active"`
}

// authorized parses the UUID path param and answers 403 unless check
// accepts the caller for it.
func (h *Handler) authorized(c *gin.Context, param string, check func(ctx context.Context, id, userID uuid.UUID) error) (uuid.UUID, bool) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := h.UUIDParam(c, param)
	if !ok {
		return uuid.Nil, false
	}
	if err := check(c.Request.Context(), id, userID); err != nil {
		h.RespondError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	poiID, ok := h.authorized(c, "id", h.service.AuthorizePOI)
	if !ok {
		return
	}
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	created, err := h.service.CreateSchedule(c.Request.Context(), models.CreateScheduleParams{
		POIID:             poiID,
		Start:             req.Start,
		End:               req.End,
		TotalCapacity:     req.TotalCapacity,
		RemainingCapacity: req.RemainingCapacity,
		IsActive:          req.IsActive,
	})
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListByPOI(c *gin.Context) {
	poiID, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	schedules, err := h.service.ListByPOI(c.Request.Context(), poiID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func (h *Handler) GetSchedule(c *gin.Context) {
	id, ok := h.UUIDParam(c, "scheduleID")
	if !ok {
		return
	}
	s, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, ok := h.authorized(c, "scheduleID", h.service.AuthorizeSchedule)
	if !ok {
		return
	}
	var patch models.SchedulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	updated, err := h.service.UpdateSchedule(c.Request.Context(), id, patch)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, ok := h.authorized(c, "scheduleID", h.service.AuthorizeSchedule)
	if !ok {
		return
	}
	if err := h.service.DeleteSchedule(c.Request.Context(), id); err != nil {
		h.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
