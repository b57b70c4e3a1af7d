package shelf

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"readhub/internal/auth"
	"readhub/internal/catalog"
	"readhub/pkg/apperrors"
	"readhub/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Catalog catalog.Gateway
	Log     *zap.Logger
}

func NewHandler(repo *Repo, cat catalog.Gateway, log *zap.Logger) *Handler {
	return &Handler{Repo: repo, Catalog: cat, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/shelf", h.addBook)
	rg.GET("/shelf", h.listShelf)
	rg.GET("/shelf/:book_id", h.getBook)
	rg.PATCH("/shelf/:book_id", h.updateBook)
	rg.DELETE("/shelf/:book_id", h.removeBook)
	rg.PUT("/shelf/:book_id/dnf", h.markDNF)
}

type addBookRequest struct {
	BookID string `json:"bookId" binding:"required"`
	Status string `json:"status"`
}

func (h *Handler) addBook(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req addBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookId is required"})
		return
	}

	status := normalizeStatus(req.Status)
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	existing, err := h.Repo.Get(c.Request.Context(), claims.UserID, req.BookID)
	if err != nil {
		h.Log.Error("load shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "book already on shelf"})
		return
	}

	now := time.Now().UTC()
	rec := models.ProgressRecord{
		ID:        uuid.NewString(),
		UserID:    claims.UserID,
		BookID:    req.BookID,
		Status:    models.StatusWant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyStatus(&rec, status, "", now); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}

	if err := h.Repo.Insert(c.Request.Context(), &rec); err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			c.JSON(http.StatusConflict, gin.H{"error": "book already on shelf"})
			return
		}
		h.Log.Error("insert shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, h.render(c, rec))
}

func (h *Handler) listShelf(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	status := ""
	if q := c.Query("status"); q != "" {
		status = normalizeStatus(q)
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
	}

	recs, err := h.Repo.ListByUser(c.Request.Context(), claims.UserID, status)
	if err != nil {
		h.Log.Error("list shelf", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.BookID)
	}
	books := h.summaries(c, ids)

	out := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		book := books[rec.BookID]
		out = append(out, entryJSON(rec, book))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "total": len(out)})
}

func (h *Handler) getBook(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	bookID := c.Param("book_id")

	rec, err := h.Repo.Get(c.Request.Context(), claims.UserID, bookID)
	if err != nil {
		h.Log.Error("load shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not on shelf"})
		return
	}

	c.JSON(http.StatusOK, h.render(c, *rec))
}

type updateBookRequest struct {
	Status               *string `json:"status"`
	Rating               *int    `json:"rating"`
	Notes                *string `json:"notes"`
	OverridePageCount    *int    `json:"overridePageCount"`
	OverrideAudioSeconds *int    `json:"overrideAudioSeconds"`
}

func (h *Handler) updateBook(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	bookID := c.Param("book_id")

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.Repo.Get(c.Request.Context(), claims.UserID, bookID)
	if err != nil {
		h.Log.Error("load shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not on shelf"})
		return
	}

	now := time.Now().UTC()
	if req.Status != nil {
		status := normalizeStatus(*req.Status)
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		if err := applyStatus(rec, status, "", now); err != nil {
			c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
			return
		}
	}
	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
			return
		}
		rec.Rating = req.Rating
	}
	if req.Notes != nil {
		rec.Notes = *req.Notes
	}
	if req.OverridePageCount != nil {
		if *req.OverridePageCount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "overridePageCount must be positive"})
			return
		}
		rec.OverridePageCount = req.OverridePageCount
	}
	if req.OverrideAudioSeconds != nil {
		if *req.OverrideAudioSeconds <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "overrideAudioSeconds must be positive"})
			return
		}
		rec.OverrideAudioSeconds = req.OverrideAudioSeconds
	}
	rec.UpdatedAt = now

	if err := h.Repo.Update(c.Request.Context(), rec); err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			c.JSON(http.StatusConflict, gin.H{"error": apperrors.Message(err)})
			return
		}
		h.Log.Error("update shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, h.render(c, *rec))
}

type dnfRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) markDNF(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	bookID := c.Param("book_id")

	var req dnfRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.Repo.Get(c.Request.Context(), claims.UserID, bookID)
	if err != nil {
		h.Log.Error("load shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not on shelf"})
		return
	}

	now := time.Now().UTC()
	if err := applyStatus(rec, models.StatusDNF, req.Reason, now); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	rec.UpdatedAt = now

	if err := h.Repo.Update(c.Request.Context(), rec); err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			c.JSON(http.StatusConflict, gin.H{"error": apperrors.Message(err)})
			return
		}
		h.Log.Error("update shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, h.render(c, *rec))
}

func (h *Handler) removeBook(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	bookID := c.Param("book_id")

	removed, err := h.Repo.Delete(c.Request.Context(), claims.UserID, bookID)
	if err != nil {
		h.Log.Error("delete shelf entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not on shelf"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "book removed from shelf"})
}

func (h *Handler) render(c *gin.Context, rec models.ProgressRecord) gin.H {
	books := h.summaries(c, []string{rec.BookID})
	return entryJSON(rec, books[rec.BookID])
}

func (h *Handler) summaries(c *gin.Context, ids []string) map[string]models.BookSummary {
	books, err := h.Catalog.GetSummaries(c.Request.Context(), ids)
	if err != nil {
		h.Log.Warn("catalog lookup failed", zap.Error(err))
		books = make(map[string]models.BookSummary, len(ids))
		for _, id := range ids {
			books[id] = catalog.Placeholder(id)
		}
	}
	return books
}

func entryJSON(rec models.ProgressRecord, book models.BookSummary) gin.H {
	return gin.H{
		"entry":      rec,
		"book":       book,
		"percentage": Percentage(rec, book),
	}
}

// applyStatus moves a record to the target status, maintaining the lifecycle
// timestamps. Leaving DNF or finished state is allowed; position is never
// reset so a resumed book continues where it stopped.
func applyStatus(rec *models.ProgressRecord, status, dnfReason string, now time.Time) error {
	if rec.Status == status && status != models.StatusDNF {
		return nil
	}

	switch status {
	case models.StatusWant:
		if rec.Started() {
			return apperrors.Validationf("cannot move a started book back to want")
		}
	case models.StatusReading:
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
		rec.FinishedAt = nil
		rec.DNFAt = nil
		rec.DNFReason = ""
	case models.StatusRead:
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
		if rec.FinishedAt == nil {
			rec.FinishedAt = &now
		}
		rec.DNFAt = nil
		rec.DNFReason = ""
	case models.StatusDNF:
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
		rec.DNFAt = &now
		rec.DNFReason = dnfReason
		rec.FinishedAt = nil
	}

	rec.Status = status
	return nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", models.StatusWant, "want_to_read", "wishlist":
		return models.StatusWant
	case models.StatusReading, "currently_reading":
		return models.StatusReading
	case models.StatusRead, "finished", "completed":
		return models.StatusRead
	case models.StatusDNF, "did_not_finish":
		return models.StatusDNF
	default:
		return ""
	}
}
