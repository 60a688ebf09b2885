package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribber/internal/model"
	"scribber/internal/utils"
)

// listModels handles GET /api/v1/models. An optional `type` query
// narrows the catalog to transcription or summarization models.
func (a *API) listModels(c *gin.Context) {
	typeStr := c.Query("type")

	var (
		models []model.ModelConfig
		err    error
	)
	switch typeStr {
	case "":
		models, err = a.repos.Models.List(c.Request.Context())
	case string(model.ModelTypeTranscription), string(model.ModelTypeSummarization):
		models, err = a.repos.Models.ListActive(c.Request.Context(), model.ModelType(typeStr))
	default:
		utils.Error(c, http.StatusBadRequest, "invalid model type")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list models")
		utils.Error(c, http.StatusInternalServerError, "failed to list models")
		return
	}

	items := make([]gin.H, 0, len(models))
	for _, m := range models {
		items = append(items, gin.H{
			"id":           m.ID,
			"name":         m.Name,
			"display_name": m.DisplayName,
			"provider":     m.Provider,
			"model_type":   m.ModelType,
			"is_active":    m.IsActive,
			"is_default":   m.IsDefault,
			"description":  m.Description,
		})
	}

	utils.Success(c, gin.H{"models": items})
}

// listUsage handles GET /api/v1/usage, the caller's own usage records.
func (a *API) listUsage(c *gin.Context) {
	uid := userID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	logs, err := a.repos.Usage.ListByUser(c.Request.Context(), uid, limit, offset)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list usage")
		utils.Error(c, http.StatusInternalServerError, "failed to list usage")
		return
	}

	var totalCost float64
	for _, l := range logs {
		if l.EstimatedCost != nil {
			totalCost += *l.EstimatedCost
		}
	}

	utils.Success(c, gin.H{
		"items":      logs,
		"total_cost": totalCost,
		"limit":      limit,
		"offset":     offset,
		"count":      len(logs),
	})
}
