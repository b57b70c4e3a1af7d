package lists

import (
	"net/http"
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
	rg.POST("/lists", h.createList)
	rg.GET("/lists", h.listLists)
	rg.GET("/lists/:id", h.getList)
	rg.DELETE("/lists/:id", h.deleteList)
	rg.POST("/lists/:id/books", h.addBook)
	rg.DELETE("/lists/:id/books/:book_id", h.removeBook)
}

type createListRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

func (h *Handler) createList(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req createListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	list := models.BookList{
		ID:          uuid.NewString(),
		UserID:      claims.UserID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Repo.Create(c.Request.Context(), &list); err != nil {
		h.Log.Error("create list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, list)
}

func (h *Handler) listLists(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	lists, err := h.Repo.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.Log.Error("list lists", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]models.ListSummary, 0, len(lists))
	for _, list := range lists {
		count, err := h.Repo.CountBooks(c.Request.Context(), list.ID)
		if err != nil {
			h.Log.Error("count list books", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		out = append(out, models.ListSummary{
			ID:          list.ID,
			Name:        list.Name,
			Description: list.Description,
			IsPublic:    list.IsPublic,
			BookCount:   count,
			CreatedAt:   list.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"lists": out, "total": len(out)})
}

func (h *Handler) getList(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	listID := c.Param("id")

	list, err := h.Repo.Get(c.Request.Context(), listID)
	if err != nil {
		h.Log.Error("load list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if list == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	if !list.IsPublic && list.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "this list is private"})
		return
	}

	ids, err := h.Repo.BookIDs(c.Request.Context(), listID)
	if err != nil {
		h.Log.Error("load list books", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	books, err := h.Catalog.GetSummaries(c.Request.Context(), ids)
	if err != nil {
		h.Log.Warn("catalog lookup failed", zap.Error(err))
		books = make(map[string]models.BookSummary, len(ids))
		for _, id := range ids {
			books[id] = catalog.Placeholder(id)
		}
	}

	ordered := make([]models.BookSummary, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, books[id])
	}

	c.JSON(http.StatusOK, gin.H{"list": list, "books": ordered})
}

func (h *Handler) deleteList(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	if err := h.Repo.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		status := apperrors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.Error("delete list", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": apperrors.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "list deleted"})
}

type addListBookRequest struct {
	BookID string `json:"bookId" binding:"required"`
}

func (h *Handler) addBook(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	listID := c.Param("id")

	var req addListBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookId is required"})
		return
	}

	list, err := h.Repo.Get(c.Request.Context(), listID)
	if err != nil {
		h.Log.Error("load list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if list == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	if list.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this list"})
		return
	}

	if err := h.Repo.AddBook(c.Request.Context(), listID, req.BookID, time.Now().UTC()); err != nil {
		status := apperrors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.Error("add list book", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": apperrors.Message(err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "book added to list"})
}

func (h *Handler) removeBook(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	listID := c.Param("id")

	list, err := h.Repo.Get(c.Request.Context(), listID)
	if err != nil {
		h.Log.Error("load list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if list == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	if list.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this list"})
		return
	}

	removed, err := h.Repo.RemoveBook(c.Request.Context(), listID, c.Param("book_id"))
	if err != nil {
		h.Log.Error("remove list book", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not on list"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "book removed from list"})
}
