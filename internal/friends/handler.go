package friends

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"readhub/internal/auth"
	"readhub/internal/directory"
	"readhub/pkg/apperrors"
	"readhub/pkg/models"
)

type Handler struct {
	Repo      *Repo
	Directory directory.Gateway
}

func NewHandler(repo *Repo, dir directory.Gateway) *Handler {
	return &Handler{Repo: repo, Directory: dir}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/friends", h.list)
	rg.DELETE("/friends/:user_id", h.remove)
	rg.GET("/friends/requests", h.listRequests)
	rg.POST("/friends/requests", h.sendRequest)
	rg.POST("/friends/requests/:id/accept", h.accept)
	rg.POST("/friends/requests/:id/decline", h.decline)
}

type sendRequestReq struct {
	ToUserID string `json:"to_user_id"`
}

func (h *Handler) sendRequest(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req sendRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	toID := strings.TrimSpace(req.ToUserID)
	if toID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_user_id required"})
		return
	}

	created, err := h.Repo.SendRequest(c.Request.Context(), claims.UserID, toID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *Handler) respond(c *gin.Context, accept bool) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id required"})
		return
	}

	if err := h.Repo.Respond(c.Request.Context(), id, claims.UserID, accept); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}

	status := "declined"
	if accept {
		status = "accepted"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) accept(c *gin.Context)  { h.respond(c, true) }
func (h *Handler) decline(c *gin.Context) { h.respond(c, false) }

func (h *Handler) listRequests(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.Repo.ListPending(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ids, err := h.Repo.FriendIDs(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	summaries, err := h.Directory.GetSummaries(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
		return
	}

	items := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := summaries[id]; ok {
			items = append(items, s)
		} else {
			items = append(items, directory.Placeholder(id))
		}
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) remove(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	otherID := strings.TrimSpace(c.Param("user_id"))
	if otherID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	ok, err := h.Repo.RemoveFriend(c.Request.Context(), claims.UserID, otherID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not friends"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
