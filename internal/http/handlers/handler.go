package handlers

import (
	"errors"
	"net/http"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
	"tasksync/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Syncer   *service.SyncService
	Tasks    *service.TaskService
	Identity service.IdentityProvider
}

func NewHandler(store service.TaskStore, identity service.IdentityProvider) *Handler {
	return &Handler{
		Syncer:   service.NewSyncService(store, identity),
		Tasks:    service.NewTaskService(store, identity),
		Identity: identity,
	}
}

// respondError maps service errors to a status and a single generic message;
// details only go to the log.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	case errors.Is(err, service.ErrInvalidTask), errors.Is(err, domain.ErrInvalidTimestamp):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	default:
		logger.WithContext(c.Request.Context()).Error(fallback, "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
