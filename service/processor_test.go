package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"MotionWeaver-server/models"
)

func newTestProcessor(t *testing.T) (*Processor, *gorm.DB, *fakeQueue, *fakeChords, *fakeNotifier) {
	t.Helper()
	db := openTestDB(t)
	queue := &fakeQueue{}
	chords := newFakeChords()
	notifier := &fakeNotifier{}
	pipe := &Pipeline{
		DB:       db,
		LLM:      &fakeLLM{responses: map[string]string{}},
		Queue:    queue,
		Notifier: notifier,
		Chords:   chords,
	}
	proc := &Processor{
		db:       db,
		queue:    queue,
		notifier: notifier,
		chords:   chords,
		pipeline: pipe,
		metrics:  newMetricsRegistry(),
	}
	return proc, db, queue, chords, notifier
}

func callbackTask(t *testing.T, taskType string, p CallbackPayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(taskType, body)
}

func TestHandleSceneReviewableAllOK(t *testing.T) {
	proc, db, _, chords, notifier := newTestProcessor(t)
	require.NoError(t, db.Create(&models.Scene{
		ID: "s1", ProjectID: "p1", Status: models.SceneStatusGenerating,
	}).Error)
	chords.seedChord("scene:s1:abc",
		TaskOutcome{SceneID: "s1", Kind: "audio", Status: OutcomeOK, Path: "p1/audio/s1.wav"},
		TaskOutcome{SceneID: "s1", Kind: "image", Status: OutcomeOK, Path: "p1/images/s1.png"},
	)

	err := proc.HandleSceneReviewable(context.Background(), callbackTask(t, TypeSceneReviewable,
		CallbackPayload{ChordID: "scene:s1:abc", SceneID: "s1", ProjectID: "p1"}))
	require.NoError(t, err)

	scene, err := models.GetSceneByID(db, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SceneStatusReview, scene.Status)
	assert.Contains(t, chords.cleaned, "scene:s1:abc")
	// The only scene reached REVIEW, so the aggregate event fires.
	assert.Contains(t, notifier.events, "project:ALL_SCENES_REVIEWABLE")
}

func TestHandleSceneReviewableFailedMemberMarksError(t *testing.T) {
	proc, db, _, chords, notifier := newTestProcessor(t)
	require.NoError(t, db.Create(&models.Scene{
		ID: "s1", ProjectID: "p1", Status: models.SceneStatusGenerating,
	}).Error)
	chords.seedChord("scene:s1:abc",
		TaskOutcome{SceneID: "s1", Kind: "audio", Status: OutcomeOK, Path: "p1/audio/s1.wav"},
		TaskOutcome{SceneID: "s1", Kind: "image", Status: OutcomeError, Error: "provider down"},
	)

	err := proc.HandleSceneReviewable(context.Background(), callbackTask(t, TypeSceneReviewable,
		CallbackPayload{ChordID: "scene:s1:abc", SceneID: "s1", ProjectID: "p1"}))
	require.NoError(t, err)

	// One failed member: the scene must not advance to REVIEW, and the
	// error marker names the failing asset.
	scene, err := models.GetSceneByID(db, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SceneStatusError, scene.Status)
	assert.Contains(t, scene.ErrorMessage, "image")
	assert.Contains(t, scene.ErrorMessage, "provider down")
	assert.Contains(t, chords.cleaned, "scene:s1:abc")
	assert.NotContains(t, notifier.events, "project:ALL_SCENES_REVIEWABLE")
}

func seedReadyProject(t *testing.T, db *gorm.DB, sceneStatuses map[string]string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Project{
		ID: "p1", Title: "t", Status: models.ProjectStatusProduction,
	}).Error)
	i := 0
	for id, st := range sceneStatuses {
		scene := &models.Scene{ID: id, ProjectID: "p1", Status: st, SequenceOrder: i}
		if st == models.SceneStatusReady {
			scene.LocalVideoPath = "p1/videos/" + id + ".mp4"
		}
		require.NoError(t, db.Create(scene).Error)
		i++
	}
}

func TestHandleVideosDoneBlockedByFailedMember(t *testing.T) {
	proc, db, queue, chords, notifier := newTestProcessor(t)
	seedReadyProject(t, db, map[string]string{
		"s1": models.SceneStatusReady,
		"s2": models.SceneStatusError,
	})
	chords.seedChord("video:p1:abc",
		TaskOutcome{SceneID: "s1", Kind: "video", Status: OutcomeOK},
		TaskOutcome{SceneID: "s2", Kind: "video", Status: OutcomeError, Error: "render failed"},
	)

	err := proc.HandleVideosDone(context.Background(), callbackTask(t, TypeVideosDone,
		CallbackPayload{ChordID: "video:p1:abc", ProjectID: "p1"}))
	require.NoError(t, err)

	// Compose is skipped and the blocked marker published; the project
	// stays in PRODUCTION for a human to resolve.
	assert.Empty(t, queue.composes)
	assert.Contains(t, notifier.events, "project:COMPOSE_BLOCKED")
	project, err := models.GetProjectByID(db, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusProduction, project.Status)
	assert.Contains(t, chords.cleaned, "video:p1:abc")
}

func TestHandleVideosDoneDuplicateBlockedCountsAsFailed(t *testing.T) {
	proc, db, queue, chords, notifier := newTestProcessor(t)
	seedReadyProject(t, db, map[string]string{"s1": models.SceneStatusReady})
	chords.seedChord("video:p1:abc",
		TaskOutcome{SceneID: "s1", Kind: "video", Status: OutcomeDuplicate},
	)

	err := proc.HandleVideosDone(context.Background(), callbackTask(t, TypeVideosDone,
		CallbackPayload{ChordID: "video:p1:abc", ProjectID: "p1"}))
	require.NoError(t, err)
	assert.Empty(t, queue.composes)
	assert.Contains(t, notifier.events, "project:COMPOSE_BLOCKED")
}

func TestHandleVideosDoneAllOKStartsCompose(t *testing.T) {
	proc, db, queue, chords, _ := newTestProcessor(t)
	seedReadyProject(t, db, map[string]string{
		"s1": models.SceneStatusReady,
		"s2": models.SceneStatusReady,
	})
	chords.seedChord("video:p1:abc",
		TaskOutcome{SceneID: "s1", Kind: "video", Status: OutcomeOK},
		TaskOutcome{SceneID: "s2", Kind: "video", Status: OutcomeOK},
	)

	err := proc.HandleVideosDone(context.Background(), callbackTask(t, TypeVideosDone,
		CallbackPayload{ChordID: "video:p1:abc", ProjectID: "p1"}))
	require.NoError(t, err)

	require.Len(t, queue.composes, 1)
	project, err := models.GetProjectByID(db, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusComposing, project.Status)
}

func TestHandleVideosDoneWaitsForOtherApprovalGroups(t *testing.T) {
	proc, db, queue, chords, notifier := newTestProcessor(t)
	seedReadyProject(t, db, map[string]string{
		"s1": models.SceneStatusReady,
		"s2": models.SceneStatusReview, // still awaiting approval
	})
	chords.seedChord("video:p1:abc",
		TaskOutcome{SceneID: "s1", Kind: "video", Status: OutcomeOK},
	)

	err := proc.HandleVideosDone(context.Background(), callbackTask(t, TypeVideosDone,
		CallbackPayload{ChordID: "video:p1:abc", ProjectID: "p1"}))
	require.NoError(t, err)

	// Not an error and not blocked: compose simply waits for the rest.
	assert.Empty(t, queue.composes)
	assert.NotContains(t, notifier.events, "project:COMPOSE_BLOCKED")
	project, err := models.GetProjectByID(db, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusProduction, project.Status)
}
