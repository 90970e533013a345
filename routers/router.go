package routers

import (
	"github.com/gin-gonic/gin"

	"MotionWeaver-server/routers/api"
)

// InitRouter wires every endpoint onto a gin engine. Route layout:
// project stage actions live under the project, scene and episode
// actions under their own ids.
func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", h.Health)
	r.GET("/ws/projects/:id", h.ProjectWS)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/llm/health", h.LLMHealth)
		v1.GET("/metrics/generation", h.GenerationMetrics)
		v1.GET("/settings/generation", h.GetGenerationSettings)
		v1.PUT("/settings/generation", h.UpdateGenerationSettings)

		projects := v1.Group("/projects")
		{
			projects.POST("", h.CreateProject)
			projects.GET("", h.ListProjects)
			projects.GET("/:id", h.GetProject)
			projects.DELETE("/:id", h.DeleteProject)

			projects.POST("/:id/outline", h.GenerateOutline)
			projects.POST("/:id/script", h.GenerateScript)
			projects.POST("/:id/scenes/parse", h.ParseScenes)
			projects.POST("/:id/produce", h.StartProduction)
			projects.POST("/:id/compose", h.StartCompose)
			projects.POST("/:id/quick-draft", h.StartQuickDraft)
			projects.POST("/:id/rollback", h.RollbackProject)
			projects.GET("/:id/draft-progress", h.DraftProgress)

			projects.GET("/:id/scenes", h.ListScenes)
			projects.POST("/:id/scenes/batch-approve", h.BatchApproveScenes)

			projects.POST("/:id/episodes", h.CreateEpisode)
			projects.GET("/:id/episodes", h.ListEpisodes)
		}

		scenes := v1.Group("/scenes")
		{
			scenes.GET("/:id", h.GetScene)
			scenes.POST("/:id/approve", h.ApproveScene)
			scenes.POST("/:id/regenerate", h.RegenerateSceneImage)
			scenes.GET("/:id/assets", h.ListAssetVersions)
			scenes.POST("/:id/assets/select", h.SelectAssetVersion)
		}

		episodes := v1.Group("/episodes")
		{
			episodes.GET("/:id", h.GetEpisode)
			episodes.POST("/:id/script", h.GenerateEpisodeScript)
			episodes.POST("/:id/scenes/parse", h.ParseEpisodeScenes)
			episodes.POST("/:id/produce", h.StartEpisodeProduction)
			episodes.POST("/:id/compose", h.StartEpisodeCompose)
		}
	}

	return r
}
