package handlers

import (
	"net/http"
	"strconv"

	"tasksync/internal/domain"

	"github.com/gin-gonic/gin"
)

// ListTasks returns the caller's active tasks.
func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.Tasks.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list tasks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get task")
		return
	}
	c.JSON(http.StatusOK, task)
}

// PutTask creates or overwrites the task at :id.
func (h *Handler) PutTask(c *gin.Context) {
	var task domain.ClientTask
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	id := c.Param("id")
	if task.ID != "" && task.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id mismatch"})
		return
	}
	task.ID = id

	saved, err := h.Tasks.Upsert(c.Request.Context(), task)
	if err != nil {
		respondError(c, err, "failed to save task")
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeleteTasks tombstones {"ids": [...]}.
func (h *Handler) DeleteTasks(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if err := h.Tasks.Delete(c.Request.Context(), req.IDs); err != nil {
		respondError(c, err, "failed to delete tasks")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListChanges pages through the mutation log with ?after=<seq>&limit=<n>.
func (h *Handler) ListChanges(c *gin.Context) {
	after, err := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil || after < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	changes, err := h.Tasks.Changes(c.Request.Context(), after, limit)
	if err != nil {
		respondError(c, err, "failed to list changes")
		return
	}

	next := after
	if len(changes) > 0 {
		next = changes[len(changes)-1].Seq
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes, "next": next})
}
