package sessions

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"readhub/internal/auth"
	"readhub/pkg/apperrors"
	"readhub/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Service *Service
	Log     *zap.Logger
}

func NewHandler(repo *Repo, svc *Service, log *zap.Logger) *Handler {
	return &Handler{Repo: repo, Service: svc, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.logSession)
	rg.GET("/sessions", h.listSessions)
	rg.GET("/sessions/book/:book_id", h.listBookSessions)
	rg.DELETE("/sessions/:id", h.deleteSession)
}

type logSessionRequest struct {
	BookID      string `json:"bookId" binding:"required"`
	Method      string `json:"method" binding:"required"`
	PagesRead   *int   `json:"pagesRead"`
	MinutesRead *int   `json:"minutesRead"`
	StartPage   *int   `json:"startPage"`
	EndPage     *int   `json:"endPage"`
	Date        string `json:"date"`
	Notes       string `json:"notes"`
}

func (h *Handler) logSession(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req logSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookId and method are required"})
		return
	}

	method := strings.ToLower(strings.TrimSpace(req.Method))
	switch method {
	case models.MethodPhysical, models.MethodEbook, models.MethodAudiobook:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "method must be physical, ebook or audiobook"})
		return
	}

	ev := models.SessionEvent{
		BookID:      req.BookID,
		Method:      method,
		PagesRead:   req.PagesRead,
		MinutesRead: req.MinutesRead,
		StartPage:   req.StartPage,
		EndPage:     req.EndPage,
		Notes:       req.Notes,
	}
	if req.Date != "" {
		d, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		ev.Date = d
	}

	stored, rec, err := h.Service.Submit(c.Request.Context(), claims.UserID, ev)
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.Error("submit session", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": apperrors.Message(err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": stored, "progress": rec})
}

func (h *Handler) listSessions(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sessions, err := h.Repo.ListRecentByUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		h.Log.Error("list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

func (h *Handler) listBookSessions(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	bookID := c.Param("book_id")

	sessions, err := h.Repo.ListByUserAndBook(c.Request.Context(), claims.UserID, bookID)
	if err != nil {
		h.Log.Error("list book sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

func (h *Handler) deleteSession(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	sessionID := c.Param("id")

	if err := h.Repo.Delete(c.Request.Context(), claims.UserID, sessionID); err != nil {
		status := apperrors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.Error("delete session", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": apperrors.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}
