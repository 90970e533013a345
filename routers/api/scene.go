package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"MotionWeaver-server/models"
)

func (h *Handler) ListScenes(c *gin.Context) {
	scenes, err := models.GetScenesByProjectID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, scenes)
}

func (h *Handler) GetScene(c *gin.Context) {
	scene, err := models.GetSceneByID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, scene)
}

// ApproveScene is the human gate in front of video generation.
func (h *Handler) ApproveScene(c *gin.Context) {
	if err := h.Pipeline.ApproveScene(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"status": models.SceneStatusApproved})
}

type batchApproveReq struct {
	SceneIDs []string `json:"scene_ids" binding:"required,min=1"`
}

func (h *Handler) BatchApproveScenes(c *gin.Context) {
	var req batchApproveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	approved, err := h.Pipeline.BatchApprove(c.Request.Context(), c.Param("id"), req.SceneIDs)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{
		"approved": approved,
		"skipped":  len(req.SceneIDs) - len(approved),
	})
}

func (h *Handler) RegenerateSceneImage(c *gin.Context) {
	if err := h.Pipeline.RegenerateSceneImage(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"status": models.SceneStatusGenerating})
}

func (h *Handler) ListAssetVersions(c *gin.Context) {
	var versions []models.AssetVersion
	if err := h.DB.Where("scene_id = ?", c.Param("id")).
		Order("asset_type ASC, version DESC").Find(&versions).Error; err != nil {
		failFrom(c, err)
		return
	}
	ok(c, versions)
}

type selectVersionReq struct {
	AssetType string `json:"asset_type" binding:"required"`
	VersionID string `json:"version_id" binding:"required"`
}

func (h *Handler) SelectAssetVersion(c *gin.Context) {
	var req selectVersionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := models.SelectAssetVersion(h.DB, c.Param("id"), req.AssetType, req.VersionID); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"selected": req.VersionID})
}
