package stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"readhub/internal/auth"
)

type Handler struct {
	Service *Service
	Log     *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.overview)
	rg.GET("/stats/timeseries", h.timeSeries)
}

func (h *Handler) overview(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	overview, err := h.Service.Overview(c.Request.Context(), claims.UserID)
	if err != nil {
		h.Log.Error("compute statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, overview)
}

func (h *Handler) timeSeries(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	year := time.Now().UTC().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 9999 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = parsed
	}

	series, err := h.Service.TimeSeries(c.Request.Context(), claims.UserID, year)
	if err != nil {
		h.Log.Error("compute time series", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, series)
}
