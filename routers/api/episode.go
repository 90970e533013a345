package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"MotionWeaver-server/models"
)

type createEpisodeReq struct {
	EpisodeNumber int    `json:"episode_number" binding:"required,min=1"`
	Title         string `json:"title" binding:"required"`
	Synopsis      string `json:"synopsis"`
}

func (h *Handler) CreateEpisode(c *gin.Context) {
	var req createEpisodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	episode, err := h.Pipeline.CreateEpisode(c.Param("id"), req.EpisodeNumber, req.Title, req.Synopsis)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, episode)
}

func (h *Handler) ListEpisodes(c *gin.Context) {
	episodes, err := models.GetEpisodesByProjectID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, episodes)
}

func (h *Handler) GetEpisode(c *gin.Context) {
	episode, err := models.GetEpisodeByID(h.DB, c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, episode)
}

func (h *Handler) GenerateEpisodeScript(c *gin.Context) {
	episode, err := h.Pipeline.GenerateEpisodeScript(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, episode)
}

func (h *Handler) ParseEpisodeScenes(c *gin.Context) {
	scenes, err := h.Pipeline.ParseEpisodeScenes(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, scenes)
}

func (h *Handler) StartEpisodeProduction(c *gin.Context) {
	if err := h.Pipeline.StartEpisodeProduction(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"status": models.EpisodeStatusProduction})
}

func (h *Handler) StartEpisodeCompose(c *gin.Context) {
	if err := h.Pipeline.StartEpisodeCompose(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, gin.H{"status": models.EpisodeStatusComposing})
}
