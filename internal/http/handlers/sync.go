package handlers

import (
	"net/http"
	"time"

	"tasksync/internal/domain"

	"github.com/gin-gonic/gin"
)

// SyncRequest carries the client's queued changes and its last watermark.
type SyncRequest struct {
	Diff             *domain.TaskDiff `json:"diff"`
	LastClientUpdate string           `json:"lastClientUpdate,omitempty"`
}

// SyncResponse is the server diff and the new watermark. LastServerUpdate is
// omitted when the user has no tasks, which tells the client to do a full sync.
type SyncResponse struct {
	Diff             *domain.TaskDiff `json:"diff"`
	LastServerUpdate *string          `json:"lastServerUpdate,omitempty"`
}

// Sync reconciles a client with the server.
func (h *Handler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	lastClientUpdate, err := domain.ParseOptionalTimestamp(req.LastClientUpdate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lastClientUpdate"})
		return
	}

	result, err := h.Syncer.Reconcile(c.Request.Context(), req.Diff, lastClientUpdate)
	if err != nil {
		respondError(c, err, "sync failed")
		return
	}

	c.JSON(http.StatusOK, SyncResponse{
		Diff:             result.Diff,
		LastServerUpdate: formatWatermark(result.LastServerUpdate),
	})
}

// ServerDiff returns what changed after ?since= without applying anything.
func (h *Handler) ServerDiff(c *gin.Context) {
	since, err := domain.ParseOptionalTimestamp(c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
		return
	}

	diff, err := h.Syncer.Diff(c.Request.Context(), since)
	if err != nil {
		respondError(c, err, "diff failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"diff": diff})
}

// Watermark returns the caller's last server update.
func (h *Handler) Watermark(c *gin.Context) {
	last, err := h.Syncer.LastServerUpdate(c.Request.Context())
	if err != nil {
		respondError(c, err, "watermark failed")
		return
	}
	resp := gin.H{}
	if w := formatWatermark(last); w != nil {
		resp["lastServerUpdate"] = *w
	}
	c.JSON(http.StatusOK, resp)
}

func formatWatermark(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatTimestamp(*t)
	return &s
}
