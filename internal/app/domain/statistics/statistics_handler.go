package statistics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain"
)

type Handler struct {
	*domain.BaseHandler
	service Service
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{BaseHandler: domain.NewBaseHandler(logger), service: service}
}

func (h *Handler) GetItineraryStats(c *gin.Context) {
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.service.GetItineraryStats(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
