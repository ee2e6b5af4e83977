package reviews

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

type submitRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// Submit answers 201 for a new review and 200 when the caller's previous
// review was overwritten.
func (h *Handler) Submit(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	poiID, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	review, created, err := h.service.Submit(c.Request.Context(), userID, poiID, req.Rating, req.Text)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"review": review, "created": created})
}

func (h *Handler) ListByPOI(c *gin.Context) {
	poiID, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.service.ListByPOI(c.Request.Context(), poiID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Summary(c *gin.Context) {
	poiID, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), poiID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
