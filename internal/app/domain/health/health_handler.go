package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	database "github.com/FACorreiaa/go-tourbook/internal/db"
)

type Handler struct {
	logger *zap.Logger
	db     database.Querier
}

func NewHandler(db database.Querier, logger *zap.Logger) *Handler {
	return &Handler{logger: logger, db: db}
}

// Check reports whether Postgres answers and has PostGIS loaded.
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var version string
	if err := h.db.QueryRow(ctx, `SELECT PostGIS_Full_Version()`).Scan(&version); err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "db": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
