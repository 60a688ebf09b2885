package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"scribber/internal/model"
	"scribber/internal/queue"
	"scribber/internal/repository"
	"scribber/internal/utils"
)

// createProject handles POST /api/v1/projects. The body is multipart:
// a `title` field plus an optional `audio` file. With audio the project
// passes through `uploading` and lands in `pending` (or `failed` when
// the file cannot be stored); without audio it is created in `pending`
// awaiting a later upload.
func (a *API) createProject(c *gin.Context) {
	uid := userID(c)

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		utils.Error(c, http.StatusBadRequest, "title is required")
		return
	}

	file, err := c.FormFile("audio")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		utils.Error(c, http.StatusBadRequest, "invalid audio upload")
		return
	}

	status := model.StatusPending
	if file != nil {
		if !a.allowedAudioFile(file.Filename) {
			utils.Error(c, http.StatusBadRequest, "unsupported audio format, allowed: "+strings.Join(a.cfg.AllowedExtensions, ", "))
			return
		}
		status = model.StatusUploading
	}

	p := &model.Project{
		UserID: uid,
		Title:  title,
		Status: status,
	}
	if err := a.repos.Projects.Create(c.Request.Context(), p); err != nil {
		a.log.Error().Err(err).Msg("failed to create project")
		utils.Error(c, http.StatusInternalServerError, "failed to create project")
		return
	}

	if file != nil {
		ref, size, err := a.store.Save(file, uid, p.ID)
		if err != nil {
			a.log.Error().Err(err).Int64("project_id", p.ID).Msg("audio upload failed")
			errText := "audio upload failed"
			p, _ = a.repos.Projects.TransitionStatus(c.Request.Context(), p.ID,
				[]model.ProjectStatus{model.StatusUploading}, model.StatusFailed,
				func(pr *model.Project) { pr.ErrorMessage = &errText })
			utils.Error(c, http.StatusInternalServerError, "failed to store audio file")
			return
		}

		filename := filepath.Base(file.Filename)
		p, err = a.repos.Projects.TransitionStatus(c.Request.Context(), p.ID,
			[]model.ProjectStatus{model.StatusUploading}, model.StatusPending,
			func(pr *model.Project) {
				pr.AudioURL = &ref
				pr.AudioFilename = &filename
				pr.AudioSizeBytes = &size
			})
		if err != nil {
			a.log.Error().Err(err).Int64("project_id", p.ID).Msg("failed to finalize upload")
			utils.Error(c, http.StatusInternalServerError, "failed to finalize upload")
			return
		}
	}

	utils.Created(c, gin.H{"project": p})
}

func (a *API) allowedAudioFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, allowed := range a.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// listProjects handles GET /api/v1/projects with limit/offset paging.
func (a *API) listProjects(c *gin.Context) {
	uid := userID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	projects, err := a.repos.Projects.ListByUser(c.Request.Context(), uid, limit, offset)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list projects")
		utils.Error(c, http.StatusInternalServerError, "failed to list projects")
		return
	}

	utils.Success(c, gin.H{
		"items":  projects,
		"limit":  limit,
		"offset": offset,
		"count":  len(projects),
	})
}

// getProject handles GET /api/v1/projects/:id.
func (a *API) getProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := a.repos.Projects.GetOwned(c.Request.Context(), id, userID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "project not found")
			return
		}
		a.log.Error().Err(err).Int64("project_id", id).Msg("failed to load project")
		utils.Error(c, http.StatusInternalServerError, "failed to load project")
		return
	}

	utils.Success(c, gin.H{"project": p})
}

type updateProjectRequest struct {
	Title         *string `json:"title"`
	Transcription *string `json:"transcription"`
	Summary       *string `json:"summary"`
}

// updateProject handles PUT /api/v1/projects/:id. Only content fields
// are editable here; status is owned by the job pipeline.
func (a *API) updateProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil && req.Transcription == nil && req.Summary == nil {
		utils.Error(c, http.StatusBadRequest, "nothing to update")
		return
	}

	p, err := a.repos.Projects.GetOwned(c.Request.Context(), id, userID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "project not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load project")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			utils.Error(c, http.StatusBadRequest, "title cannot be empty")
			return
		}
		p.Title = title
	}
	if req.Transcription != nil {
		p.Transcription = req.Transcription
	}
	if req.Summary != nil {
		p.Summary = req.Summary
	}

	if err := a.repos.Projects.Update(c.Request.Context(), p); err != nil {
		a.log.Error().Err(err).Int64("project_id", id).Msg("failed to update project")
		utils.Error(c, http.StatusInternalServerError, "failed to update project")
		return
	}

	utils.Success(c, gin.H{"project": p})
}

// deleteProject handles DELETE /api/v1/projects/:id. The audio file
// is removed from disk best effort after the row is gone.
func (a *API) deleteProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := a.repos.Projects.GetOwned(c.Request.Context(), id, userID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "project not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load project")
		return
	}

	if err := a.repos.Projects.Delete(c.Request.Context(), p.ID); err != nil {
		a.log.Error().Err(err).Int64("project_id", id).Msg("failed to delete project")
		utils.Error(c, http.StatusInternalServerError, "failed to delete project")
		return
	}

	if p.AudioURL != nil {
		if err := a.store.Delete(*p.AudioURL); err != nil {
			a.log.Warn().Err(err).Int64("project_id", id).Msg("failed to remove audio file")
		}
	}

	utils.Success(c, gin.H{"deleted": true})
}

// getProjectStatus handles GET /api/v1/projects/:id/status, the cheap
// polling endpoint. Reading status never changes it.
func (a *API) getProjectStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := a.repos.Projects.GetOwned(c.Request.Context(), id, userID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "project not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load project")
		return
	}

	resp := gin.H{
		"id":     p.ID,
		"status": p.Status,
	}
	if p.ErrorMessage != nil {
		resp["error_message"] = *p.ErrorMessage
	}
	if p.Status == model.StatusCompleted {
		resp["has_transcription"] = p.HasTranscription()
		resp["has_summary"] = p.Summary != nil && *p.Summary != ""
	}
	utils.Success(c, resp)
}

type enqueueRequest struct {
	ModelID *int64 `json:"model_id"`
}

// transcribeProject handles POST /api/v1/projects/:id/transcribe.
func (a *API) transcribeProject(c *gin.Context) {
	a.enqueueJob(c, a.queue.EnqueueTranscription)
}

// summarizeProject handles POST /api/v1/projects/:id/summarize.
func (a *API) summarizeProject(c *gin.Context) {
	a.enqueueJob(c, a.queue.EnqueueSummarization)
}

func (a *API) enqueueJob(c *gin.Context, enqueue func(ctx context.Context, projectID, userID int64, modelID *int64) (*model.Job, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req enqueueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := enqueue(c.Request.Context(), id, userID(c), req.ModelID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			utils.Error(c, http.StatusNotFound, "project not found")
		case errors.Is(err, queue.ErrNoAudio), errors.Is(err, queue.ErrNoTranscription), errors.Is(err, queue.ErrInvalidModel):
			utils.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrInvalidState), errors.Is(err, repository.ErrActiveJob):
			utils.Error(c, http.StatusConflict, err.Error())
		default:
			a.log.Error().Err(err).Int64("project_id", id).Msg("failed to enqueue job")
			utils.Error(c, http.StatusInternalServerError, "failed to enqueue job")
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"job_id":    job.ID,
			"operation": job.Operation,
			"status":    job.Status,
		},
	})
}
