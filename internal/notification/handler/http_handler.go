package handler

import (
	"net/http"
	"strconv"

	"estate_crm_backend/internal/notification/inapp"
	"estate_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	inapp *inapp.Service
}

func New(inappSvc *inapp.Service) *Handler {
	return &Handler{inapp: inappSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread-count", h.UnreadCount)
	rg.POST("/:id/read", h.MarkRead)
	rg.POST("/read-all", h.MarkAllRead)
}

func (h *Handler) List(c *gin.Context) {
	actor := httpkit.MustGetIdentity(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.inapp.List(c.Request.Context(), actor.UserID(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"data":  items,
		"total": total,
	})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	actor := httpkit.MustGetIdentity(c)

	count, err := h.inapp.CountUnread(c.Request.Context(), actor.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"unread": count})
}

func (h *Handler) MarkRead(c *gin.Context) {
	actor := httpkit.MustGetIdentity(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	if err := h.inapp.MarkRead(c.Request.Context(), id, actor.UserID()); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	actor := httpkit.MustGetIdentity(c)

	updated, err := h.inapp.MarkAllRead(c.Request.Context(), actor.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"updated": updated})
}
