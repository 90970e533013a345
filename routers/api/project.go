package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"MotionWeaver-server/models"
)

type createProjectReq struct {
	Title       string `json:"title" binding:"required"`
	Logline     string `json:"logline" binding:"required"`
	StylePreset string `json:"style_preset"`
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	style := req.StylePreset
	if style == "" {
		style = "default"
	}
	project := &models.Project{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Logline:     req.Logline,
		StylePreset: style,
		Status:      models.ProjectStatusDraft,
		Mode:        models.ProjectModeStandard,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := h.DB.Create(project).Error; err != nil {
		failFrom(c, err)
		return
	}
	ok(c, project)
}

func (h *Handler) ListProjects(c *gin.Context) {
	var projects []models.Project
	if err := h.DB.Order("created_at DESC").Find(&projects).Error; err != nil {
		failFrom(c, err)
		return
	}
	ok(c, projects)
}

func (h *Handler) GetProject(c *gin.Context) {
	project, err := models.GetProjectByID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, project)
}

func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.DB.Delete(&models.Project{}, "id = ?", c.Param("id")).Error; err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"deleted": c.Param("id")})
}

// Stage endpoints. Each one is a thin shim over the pipeline; the
// pipeline owns validation and ordering.

func (h *Handler) GenerateOutline(c *gin.Context) {
	project, err := h.Pipeline.GenerateOutline(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, project)
}

func (h *Handler) GenerateScript(c *gin.Context) {
	project, err := h.Pipeline.GenerateScript(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, project)
}

func (h *Handler) ParseScenes(c *gin.Context) {
	scenes, err := h.Pipeline.ParseScenes(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, scenes)
}

func (h *Handler) StartProduction(c *gin.Context) {
	if err := h.Pipeline.StartProduction(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"status": models.ProjectStatusProduction})
}

func (h *Handler) StartCompose(c *gin.Context) {
	if err := h.Pipeline.StartCompose(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"status": models.ProjectStatusComposing})
}

func (h *Handler) StartQuickDraft(c *gin.Context) {
	if err := h.Pipeline.StartQuickDraft(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"mode": models.ProjectModeQuickDraft})
}

type rollbackReq struct {
	Target string `json:"target" binding:"required"`
}

// Rollback is the explicit human "go back one stage" action. The
// transition table enforces that only one-step rollbacks exist, so this
// endpoint just validates and applies.
func (h *Handler) RollbackProject(c *gin.Context) {
	var req rollbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	project, err := models.GetProjectByID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	if !project.IsRollback(req.Target) {
		fail(c, http.StatusBadRequest, "target is not an earlier stage")
		return
	}
	if err := project.TransitionTo(h.DB, req.Target); err != nil {
		failFrom(c, err)
		return
	}
	h.Notifier.PublishProjectUpdate(project.ID, project.Status)
	ok(c, project)
}

// DraftProgress is the polling fallback for clients without a live
// websocket: the latest quick-draft snapshot persisted on the row.
func (h *Handler) DraftProgress(c *gin.Context) {
	project, err := models.GetProjectByID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	c.Header("Content-Type", "application/json")
	if project.DraftProgress == "" {
		ok(c, gin.H{})
		return
	}
	c.String(http.StatusOK, project.DraftProgress)
}
