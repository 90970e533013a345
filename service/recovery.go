package service

import (
	"log"

	"gorm.io/gorm"

	"MotionWeaver-server/models"
)

// Crash recovery: anything left mid-flight by a dead worker is rolled
// back to the closest stable state at startup, before the worker pool
// accepts new tasks. In-flight state is rolled BACK (a half-finished
// task reruns from its stable predecessor), never forward. ERROR rows
// are untouched: that state is terminal until a human retries.
var (
	sceneRecovery = map[string]string{
		models.SceneStatusGenerating: models.SceneStatusPending,
		models.SceneStatusVideoGen:   models.SceneStatusReview,
		// Legacy per-asset states from before audio+image merged into
		// one GENERATING phase. Rows migrated from old deployments.
		"AUDIO_GEN": models.SceneStatusPending,
		"IMAGE_GEN": models.SceneStatusPending,
	}
	projectRecovery = map[string]string{
		models.ProjectStatusComposing: models.ProjectStatusProduction,
	}
	episodeRecovery = map[string]string{
		models.EpisodeStatusComposing: models.EpisodeStatusProduction,
	}
)

// RecoverStuckEntities remaps crashed in-flight rows. Bulk updates keyed
// on current status make it idempotent: a second run matches nothing.
// Failures are logged, not fatal — a recovery error must not keep the
// service from starting.
func RecoverStuckEntities(db *gorm.DB) {
	for from, to := range sceneRecovery {
		res := db.Model(&models.Scene{}).Where("status = ?", from).Update("status", to)
		if res.Error != nil {
			log.Printf("[Recovery] scenes %s->%s failed: %v", from, to, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			log.Printf("[Recovery] scenes %s->%s: %d rows", from, to, res.RowsAffected)
		}
	}
	for from, to := range projectRecovery {
		res := db.Model(&models.Project{}).Where("status = ?", from).Update("status", to)
		if res.Error != nil {
			log.Printf("[Recovery] projects %s->%s failed: %v", from, to, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			log.Printf("[Recovery] projects %s->%s: %d rows", from, to, res.RowsAffected)
		}
	}
	for from, to := range episodeRecovery {
		res := db.Model(&models.Episode{}).Where("status = ?", from).Update("status", to)
		if res.Error != nil {
			log.Printf("[Recovery] episodes %s->%s failed: %v", from, to, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			log.Printf("[Recovery] episodes %s->%s: %d rows", from, to, res.RowsAffected)
		}
	}
}
