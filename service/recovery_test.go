package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MotionWeaver-server/models"
)

func TestRecoverStuckEntities(t *testing.T) {
	db := openTestDB(t)

	scenes := map[string]string{
		"s-gen":   models.SceneStatusGenerating,
		"s-vid":   models.SceneStatusVideoGen,
		"s-audio": "AUDIO_GEN",
		"s-image": "IMAGE_GEN",
		"s-rev":   models.SceneStatusReview,
		"s-err":   models.SceneStatusError,
	}
	i := 0
	for id, st := range scenes {
		require.NoError(t, db.Create(&models.Scene{
			ID: id, ProjectID: "p1", Status: st, SequenceOrder: i,
		}).Error)
		i++
	}
	require.NoError(t, db.Create(&models.Project{
		ID: "p1", Title: "t", Status: models.ProjectStatusComposing,
	}).Error)
	require.NoError(t, db.Create(&models.Project{
		ID: "p2", Title: "t", Status: models.ProjectStatusCompleted,
	}).Error)
	require.NoError(t, db.Create(&models.Episode{
		ID: "e1", ProjectID: "p1", Status: models.EpisodeStatusComposing,
	}).Error)

	RecoverStuckEntities(db)

	want := map[string]string{
		"s-gen":   models.SceneStatusPending,
		"s-vid":   models.SceneStatusReview,
		"s-audio": models.SceneStatusPending,
		"s-image": models.SceneStatusPending,
		"s-rev":   models.SceneStatusReview,
		"s-err":   models.SceneStatusError, // terminal until a human retries
	}
	for id, expected := range want {
		scene, err := models.GetSceneByID(db, id)
		require.NoError(t, err)
		assert.Equal(t, expected, scene.Status, "scene %s", id)
	}

	p1, err := models.GetProjectByID(db, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusProduction, p1.Status)

	p2, err := models.GetProjectByID(db, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, p2.Status, "stable states untouched")

	e1, err := models.GetEpisodeByID(db, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EpisodeStatusProduction, e1.Status)
}

func TestRecoverStuckEntitiesIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.Scene{
		ID: "s1", ProjectID: "p1", Status: models.SceneStatusVideoGen,
	}).Error)

	RecoverStuckEntities(db)
	RecoverStuckEntities(db)

	scene, err := models.GetSceneByID(db, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SceneStatusReview, scene.Status)
}
