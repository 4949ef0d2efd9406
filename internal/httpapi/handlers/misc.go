package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nattw/visionchat/internal/common"
	"github.com/nattw/visionchat/internal/markdown"
)

func (h *Handler) Usage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	used, limit, day, err := h.ChatSvc.Usage(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to read usage")
		return
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	common.OK(c, gin.H{
		"used":      used,
		"limit":     limit,
		"remaining": remaining,
		"day":       day,
	})
}

type renderReq struct {
	Text string `json:"text" binding:"required"`
}

// Render formats response text into typed display blocks.
func (h *Handler) Render(c *gin.Context) {
	var req renderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	common.OK(c, gin.H{"blocks": markdown.Render(req.Text)})
}

// Blob serves an ephemeral image captured after an upload fallback.
func (h *Handler) Blob(c *gin.Context) {
	blob, ok := h.Blobs.Get(c.Param("id"))
	if !ok {
		common.Fail(c, http.StatusNotFound, 40403, "blob not found")
		return
	}
	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Data(http.StatusOK, ct, blob.Data)
}
