// Package api exposes the HTTP and WebSocket surface over gin.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"scribber/internal/config"
	"scribber/internal/notify"
	"scribber/internal/queue"
	"scribber/internal/repository"
	"scribber/internal/storage"
	"scribber/internal/utils"
)

const ctxUserID = "userID"

// API bundles the dependencies the handlers need.
type API struct {
	cfg   *config.Config
	repos *repository.Repositories
	queue *queue.Service
	store *storage.Store
	hub   *notify.Hub
	bcast *notify.Broadcaster
	log   zerolog.Logger
}

// New creates the API surface.
func New(cfg *config.Config, repos *repository.Repositories, qs *queue.Service, store *storage.Store, hub *notify.Hub, bcast *notify.Broadcaster, log zerolog.Logger) *API {
	return &API{
		cfg:   cfg,
		repos: repos,
		queue: qs,
		store: store,
		hub:   hub,
		bcast: bcast,
		log:   log,
	}
}

// RegisterRoutes wires all endpoints onto the engine.
func (a *API) RegisterRoutes(r *gin.Engine) {
	// Health check
	r.GET("/health", a.healthCheck)

	// WebSocket updates; auth is handled inside the handler because
	// browsers cannot set custom headers on the WS handshake.
	r.GET("/ws/projects/:id", a.projectWebSocket)

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(a.requireUser())
	{
		v1.POST("/projects", a.createProject)
		v1.GET("/projects", a.listProjects)
		v1.GET("/projects/:id", a.getProject)
		v1.PUT("/projects/:id", a.updateProject)
		v1.DELETE("/projects/:id", a.deleteProject)
		v1.GET("/projects/:id/status", a.getProjectStatus)
		v1.POST("/projects/:id/transcribe", a.transcribeProject)
		v1.POST("/projects/:id/summarize", a.summarizeProject)

		v1.GET("/models", a.listModels)
		v1.GET("/usage", a.listUsage)
	}
}

// healthCheck returns server health status.
func (a *API) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "scribber-backend",
	})
}

// requireUser resolves the caller from the X-User-ID header and makes
// sure the owner row exists. This is MVP auth: identity is trusted,
// ownership is still enforced on every lookup.
func (a *API) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.GetHeader("X-User-ID")
		if idStr == "" {
			utils.Error(c, http.StatusUnauthorized, "X-User-ID header is required")
			c.Abort()
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			utils.Error(c, http.StatusUnauthorized, "invalid X-User-ID header")
			c.Abort()
			return
		}
		if err := a.repos.Users.EnsureExists(c.Request.Context(), id); err != nil {
			a.log.Error().Err(err).Int64("user_id", id).Msg("failed to ensure user")
			utils.Error(c, http.StatusInternalServerError, "internal error")
			c.Abort()
			return
		}
		c.Set(ctxUserID, id)
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.Error(c, http.StatusBadRequest, "invalid id format")
		return 0, false
	}
	return id, true
}
