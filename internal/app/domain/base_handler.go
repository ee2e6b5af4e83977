package domain

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/auth"
	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

// BaseHandler carries the JSON helpers shared by every feature handler.
type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

// StatusFor maps a domain error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInsufficientCapacity),
		errors.Is(err, models.ErrScheduleInactive),
		errors.Is(err, models.ErrTimeOverlap),
		errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidGeometry),
		errors.Is(err, models.ErrInvalidRating):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes {"error": ...}. Internal errors are logged and their
// text is not exposed.
func (h *BaseHandler) RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// BadRequest reports malformed input that never reached the domain.
func (h *BaseHandler) BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// UUIDParam parses a path parameter, answering 400 itself when it is invalid.
func (h *BaseHandler) UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// CurrentUser returns the authenticated caller or answers 401.
func (h *BaseHandler) CurrentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return uuid.Nil, false
	}
	return id, true
}

// QueryFloat reads a required, finite float query parameter.
func (h *BaseHandler) QueryFloat(c *gin.Context, name string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		h.BadRequest(c, "query parameter "+name+" must be a number")
		return 0, false
	}
	return v, true
}

// QueryInt reads an optional int query parameter.
func (h *BaseHandler) QueryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.BadRequest(c, "query parameter "+name+" must be an integer")
		return 0, false
	}
	return v, true
}
