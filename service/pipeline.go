package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"MotionWeaver-server/models"
)

// ChordCreator is the slice of ChordStore the coordinators need.
type ChordCreator interface {
	Create(ctx context.Context, chordID string, members int) error
}

// Pipeline sequences the production stages for one project or episode:
// read entity state, validate the next transition, enqueue the work,
// publish the change. All status writes go through the state machines.
type Pipeline struct {
	DB       *gorm.DB
	LLM      LLMCaller
	Queue    Enqueuer
	Notifier Publisher
	Chords   ChordCreator
}

const (
	outlineSystemPrompt = "You are a story architect for short comic dramas. Expand the given logline into a structured world outline: setting, main characters, central conflict, tone."
	scriptSystemPrompt  = "You are a screenwriter. Turn the given world outline into a complete episode script with numbered scenes, dialogue, and visual direction."
	scenesSystemPrompt  = `Split the given script into storyboard scenes. Respond with JSON: {"scenes":[{"dialogue":"...","visual_prompt":"...","motion_prompt":"...","sfx":"..."}]} in story order.`
)

// GenerateOutline runs stage 1: DRAFT → OUTLINE_REVIEW.
func (p *Pipeline) GenerateOutline(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := models.GetProjectByID(p.DB, projectID)
	if err != nil {
		return nil, err
	}
	if !project.CanTransition(models.ProjectStatusOutlineReview) {
		return nil, &models.InvalidTransitionError{
			Entity: "project", ID: project.ID,
			From: project.Status, To: models.ProjectStatusOutlineReview,
		}
	}
	if strings.TrimSpace(project.Logline) == "" {
		return nil, fmt.Errorf("project %s has no logline", projectID)
	}

	outline, err := p.LLM.Call(ctx, outlineSystemPrompt, project.Logline, false, "outline")
	if err != nil {
		return nil, fmt.Errorf("generate outline: %w", err)
	}

	if err := p.DB.Model(project).Updates(map[string]interface{}{
		"world_outline": outline,
		"status":        models.ProjectStatusOutlineReview,
		"updated_at":    time.Now(),
	}).Error; err != nil {
		return nil, err
	}
	project.WorldOutline = outline
	project.Status = models.ProjectStatusOutlineReview
	p.Notifier.PublishProjectUpdate(projectID, project.Status)
	return project, nil
}

// GenerateScript runs stage 2: OUTLINE_REVIEW → SCRIPT_REVIEW. The
// outline must have been human-reviewed first.
func (p *Pipeline) GenerateScript(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := models.GetProjectByID(p.DB, projectID)
	if err != nil {
		return nil, err
	}
	if !project.CanTransition(models.ProjectStatusScriptReview) {
		return nil, &models.InvalidTransitionError{
			Entity: "project", ID: project.ID,
			From: project.Status, To: models.ProjectStatusScriptReview,
		}
	}
	if strings.TrimSpace(project.WorldOutline) == "" {
		return nil, fmt.Errorf("project %s has no outline to expand", projectID)
	}

	script, err := p.LLM.Call(ctx, scriptSystemPrompt, project.WorldOutline, false, "script")
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	if err := p.DB.Model(project).Updates(map[string]interface{}{
		"full_script": script,
		"status":      models.ProjectStatusScriptReview,
		"updated_at":  time.Now(),
	}).Error; err != nil {
		return nil, err
	}
	project.FullScript = script
	project.Status = models.ProjectStatusScriptReview
	p.Notifier.PublishProjectUpdate(projectID, project.Status)
	return project, nil
}

type parsedScene struct {
	Dialogue     string `json:"dialogue"`
	VisualPrompt string `json:"visual_prompt"`
	MotionPrompt string `json:"motion_prompt"`
	Sfx          string `json:"sfx"`
}

// ParseScenes runs stage 3: SCRIPT_REVIEW → STORYBOARD, creating one
// PENDING scene row per storyboard panel.
func (p *Pipeline) ParseScenes(ctx context.Context, projectID string) ([]models.Scene, error) {
	project, err := models.GetProjectByID(p.DB, projectID)
	if err != nil {
		return nil, err
	}
	if !project.CanTransition(models.ProjectStatusStoryboard) {
		return nil, &models.InvalidTransitionError{
			Entity: "project", ID: project.ID,
			From: project.Status, To: models.ProjectStatusStoryboard,
		}
	}
	if strings.TrimSpace(project.FullScript) == "" {
		return nil, fmt.Errorf("project %s has no script to parse", projectID)
	}

	raw, err := p.LLM.Call(ctx, scenesSystemPrompt, project.FullScript, true, "parse_scenes")
	if err != nil {
		return nil, fmt.Errorf("parse scenes: %w", err)
	}
	scenes, err := p.buildScenes(projectID, nil, raw)
	if err != nil {
		return nil, err
	}

	if err := p.DB.Transaction(func(tx *gorm.DB) error {
		if err := models.BatchCreateScenes(tx, scenes); err != nil {
			return err
		}
		return project.TransitionTo(tx, models.ProjectStatusStoryboard)
	}); err != nil {
		return nil, err
	}
	p.Notifier.PublishProjectUpdate(projectID, project.Status)
	log.Printf("[Pipeline] project %s: created %d scenes", projectID, len(scenes))
	return scenes, nil
}

func (p *Pipeline) buildScenes(projectID string, episodeID *string, raw string) ([]models.Scene, error) {
	var parsed struct {
		Scenes []parsedScene `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("scene json malformed: %w", err)
	}
	if len(parsed.Scenes) == 0 {
		return nil, fmt.Errorf("scene json contained no scenes")
	}
	now := time.Now()
	scenes := make([]models.Scene, 0, len(parsed.Scenes))
	for i, ps := range parsed.Scenes {
		scenes = append(scenes, models.Scene{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			EpisodeID:     episodeID,
			SequenceOrder: i + 1,
			DialogueText:  ps.Dialogue,
			PromptVisual:  ps.VisualPrompt,
			PromptMotion:  ps.MotionPrompt,
			SfxText:       ps.Sfx,
			Status:        models.SceneStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return scenes, nil
}

// StartProduction runs stage 4: STORYBOARD → PRODUCTION. Phase 1 of
// the task graph: every scene fans out audio + image in parallel, each
// behind its own join barrier whose continuation marks it reviewable.
func (p *Pipeline) StartProduction(ctx context.Context, projectID string) error {
	project, err := models.GetProjectByID(p.DB, projectID)
	if err != nil {
		return err
	}
	if err := project.TransitionTo(p.DB, models.ProjectStatusProduction); err != nil {
		return err
	}

	scenes, err := models.GetScenesByProjectID(p.DB, projectID)
	if err != nil {
		return err
	}
	for i := range scenes {
		scene := &scenes[i]
		if scene.Status != models.SceneStatusPending {
			continue
		}
		if err := p.launchSceneAssets(ctx, scene); err != nil {
			log.Printf("[Pipeline] launch assets for scene %s failed: %v", scene.ID, err)
		}
	}
	p.Notifier.PublishProjectUpdate(projectID, project.Status)
	return nil
}

func (p *Pipeline) launchSceneAssets(ctx context.Context, scene *models.Scene) error {
	if err := scene.TransitionTo(p.DB, models.SceneStatusGenerating); err != nil {
		return err
	}
	members := 1 // image always
	withAudio := strings.TrimSpace(scene.DialogueText) != ""
	if withAudio {
		members = 2
	}
	chordID := NewChordID("scene:" + scene.ID)
	if err := p.Chords.Create(ctx, chordID, members); err != nil {
		return err
	}
	payload := AssetPayload{SceneID: scene.ID, ProjectID: scene.ProjectID, ChordID: chordID}
	if withAudio {
		if err := p.Queue.EnqueueSceneAudio(payload); err != nil {
			return err
		}
	}
	return p.Queue.EnqueueSceneImage(payload)
}

// ApproveScene is the human-in-the-loop gate. Only a scene at REVIEW
// with a generated image may advance, and the APPROVED write is a
// conditional update so a concurrent double-approve loses cleanly.
func (p *Pipeline) ApproveScene(ctx context.Context, sceneID string) error {
	ids, err := p.approveAndLaunch(ctx, []string{sceneID}, "")
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrDuplicateWork
	}
	return nil
}

// BatchApprove is the explicit bulk human action: approve the given
// scenes and run their video generation as one parallel group behind a
// single join barrier.
func (p *Pipeline) BatchApprove(ctx context.Context, projectID string, sceneIDs []string) ([]string, error) {
	return p.approveAndLaunch(ctx, sceneIDs, projectID)
}

func (p *Pipeline) approveAndLaunch(ctx context.Context, sceneIDs []string, projectID string) ([]string, error) {
	type launch struct {
		scene   *models.Scene
		payload AssetPayload
	}
	var launches []launch

	for _, id := range sceneIDs {
		scene, err := models.GetSceneByID(p.DB, id)
		if err != nil {
			return nil, err
		}
		if scene.Status != models.SceneStatusReview {
			if len(sceneIDs) == 1 {
				return nil, &models.InvalidTransitionError{
					Entity: "scene", ID: scene.ID,
					From: scene.Status, To: models.SceneStatusApproved,
				}
			}
			continue
		}
		if scene.LocalImagePath == "" {
			if len(sceneIDs) == 1 {
				return nil, fmt.Errorf("scene %s has no generated image", id)
			}
			continue
		}
		// Conditional write: only the first concurrent approval sees
		// REVIEW; everyone else is rejected.
		res := p.DB.Model(&models.Scene{}).
			Where("id = ? AND status = ?", id, models.SceneStatusReview).
			Updates(map[string]interface{}{
				"status":     models.SceneStatusApproved,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		scene.Status = models.SceneStatusApproved
		if projectID == "" {
			projectID = scene.ProjectID
		}
		launches = append(launches, launch{scene: scene})
	}

	if len(launches) == 0 {
		return nil, nil
	}

	chordID := NewChordID("video:" + projectID)
	if err := p.Chords.Create(ctx, chordID, len(launches)); err != nil {
		return nil, err
	}

	approved := make([]string, 0, len(launches))
	for _, l := range launches {
		payload := AssetPayload{SceneID: l.scene.ID, ProjectID: l.scene.ProjectID, ChordID: chordID}
		if err := p.Queue.EnqueueSceneVideo(payload); err != nil {
			return approved, err
		}
		p.Notifier.PublishSceneUpdate(l.scene.ProjectID, l.scene.ID, l.scene.Status)
		approved = append(approved, l.scene.ID)
	}
	return approved, nil
}

// RegenerateSceneImage re-runs image generation for a scene the human
// rejected (REVIEW) or that errored out.
func (p *Pipeline) RegenerateSceneImage(ctx context.Context, sceneID string) error {
	scene, err := models.GetSceneByID(p.DB, sceneID)
	if err != nil {
		return err
	}
	if err := scene.TransitionTo(p.DB, models.SceneStatusGenerating); err != nil {
		return err
	}
	chordID := NewChordID("scene:" + scene.ID)
	if err := p.Chords.Create(ctx, chordID, 1); err != nil {
		return err
	}
	return p.Queue.EnqueueSceneImage(AssetPayload{
		SceneID: scene.ID, ProjectID: scene.ProjectID, ChordID: chordID,
	})
}

// StartCompose triggers final composition once every scene is READY.
func (p *Pipeline) StartCompose(ctx context.Context, projectID string) error {
	project, err := models.GetProjectByID(p.DB, projectID)
	if err != nil {
		return err
	}
	scenes, err := models.GetScenesByProjectID(p.DB, projectID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return fmt.Errorf("project %s has no scenes", projectID)
	}
	var notReady []string
	for _, s := range scenes {
		if s.Status != models.SceneStatusReady {
			notReady = append(notReady, s.ID)
		}
	}
	if len(notReady) > 0 {
		return &AggregateBlockedError{Scope: "project:" + projectID, Failed: notReady}
	}

	if err := project.TransitionTo(p.DB, models.ProjectStatusComposing); err != nil {
		return err
	}
	p.Notifier.PublishProjectUpdate(projectID, project.Status)
	return p.Queue.EnqueueCompose(ComposePayload{ProjectID: projectID})
}

// ---------------------------------------------------------------------------
// Episode-scoped stages. Episodes advance independently, so a project
// can have episode 1 in PRODUCTION while episode 2 is still writing.
// ---------------------------------------------------------------------------

// CreateEpisode adds an episode in SCRIPT_GENERATING.
func (p *Pipeline) CreateEpisode(projectID string, number int, title, synopsis string) (*models.Episode, error) {
	if _, err := models.GetProjectByID(p.DB, projectID); err != nil {
		return nil, err
	}
	episode := &models.Episode{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		EpisodeNumber: number,
		Title:         title,
		Synopsis:      synopsis,
		Status:        models.EpisodeStatusScriptGenerating,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := p.DB.Create(episode).Error; err != nil {
		return nil, err
	}
	return episode, nil
}

// GenerateEpisodeScript writes the episode script:
// SCRIPT_GENERATING → SCRIPT_REVIEW.
func (p *Pipeline) GenerateEpisodeScript(ctx context.Context, episodeID string) (*models.Episode, error) {
	episode, err := models.GetEpisodeByID(p.DB, episodeID)
	if err != nil {
		return nil, err
	}
	if !episode.CanTransition(models.EpisodeStatusScriptReview) {
		return nil, &models.InvalidTransitionError{
			Entity: "episode", ID: episode.ID,
			From: episode.Status, To: models.EpisodeStatusScriptReview,
		}
	}
	project, err := models.GetProjectByID(p.DB, episode.ProjectID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("World outline:\n%s\n\nEpisode %d synopsis:\n%s",
		project.WorldOutline, episode.EpisodeNumber, episode.Synopsis)
	script, err := p.LLM.Call(ctx, scriptSystemPrompt, prompt, false, "episode_script")
	if err != nil {
		return nil, fmt.Errorf("generate episode script: %w", err)
	}

	if err := p.DB.Model(episode).Updates(map[string]interface{}{
		"full_script": script,
		"status":      models.EpisodeStatusScriptReview,
		"updated_at":  time.Now(),
	}).Error; err != nil {
		return nil, err
	}
	episode.FullScript = script
	episode.Status = models.EpisodeStatusScriptReview
	p.Notifier.PublishProjectUpdate(episode.ProjectID, "episode:"+episode.Status)
	return episode, nil
}

// ParseEpisodeScenes: episode SCRIPT_REVIEW → STORYBOARD.
func (p *Pipeline) ParseEpisodeScenes(ctx context.Context, episodeID string) ([]models.Scene, error) {
	episode, err := models.GetEpisodeByID(p.DB, episodeID)
	if err != nil {
		return nil, err
	}
	if !episode.CanTransition(models.EpisodeStatusStoryboard) {
		return nil, &models.InvalidTransitionError{
			Entity: "episode", ID: episode.ID,
			From: episode.Status, To: models.EpisodeStatusStoryboard,
		}
	}
	if strings.TrimSpace(episode.FullScript) == "" {
		return nil, fmt.Errorf("episode %s has no script to parse", episodeID)
	}

	raw, err := p.LLM.Call(ctx, scenesSystemPrompt, episode.FullScript, true, "parse_episode_scenes")
	if err != nil {
		return nil, err
	}
	scenes, err := p.buildScenes(episode.ProjectID, &episode.ID, raw)
	if err != nil {
		return nil, err
	}

	if err := p.DB.Transaction(func(tx *gorm.DB) error {
		if err := models.BatchCreateScenes(tx, scenes); err != nil {
			return err
		}
		return episode.TransitionTo(tx, models.EpisodeStatusStoryboard)
	}); err != nil {
		return nil, err
	}
	return scenes, nil
}

// StartEpisodeProduction: episode STORYBOARD → PRODUCTION, phase-1 fan
// out over the episode's scenes only.
func (p *Pipeline) StartEpisodeProduction(ctx context.Context, episodeID string) error {
	episode, err := models.GetEpisodeByID(p.DB, episodeID)
	if err != nil {
		return err
	}
	if err := episode.TransitionTo(p.DB, models.EpisodeStatusProduction); err != nil {
		return err
	}
	scenes, err := models.GetScenesByEpisodeID(p.DB, episodeID)
	if err != nil {
		return err
	}
	for i := range scenes {
		scene := &scenes[i]
		if scene.Status != models.SceneStatusPending {
			continue
		}
		if err := p.launchSceneAssets(ctx, scene); err != nil {
			log.Printf("[Pipeline] launch assets for scene %s failed: %v", scene.ID, err)
		}
	}
	p.Notifier.PublishProjectUpdate(episode.ProjectID, "episode:"+episode.Status)
	return nil
}

// StartEpisodeCompose mirrors StartCompose at episode granularity.
func (p *Pipeline) StartEpisodeCompose(ctx context.Context, episodeID string) error {
	episode, err := models.GetEpisodeByID(p.DB, episodeID)
	if err != nil {
		return err
	}
	scenes, err := models.GetScenesByEpisodeID(p.DB, episodeID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return fmt.Errorf("episode %s has no scenes", episodeID)
	}
	var notReady []string
	for _, s := range scenes {
		if s.Status != models.SceneStatusReady {
			notReady = append(notReady, s.ID)
		}
	}
	if len(notReady) > 0 {
		return &AggregateBlockedError{Scope: "episode:" + episodeID, Failed: notReady}
	}
	if err := episode.TransitionTo(p.DB, models.EpisodeStatusComposing); err != nil {
		return err
	}
	return p.Queue.EnqueueCompose(ComposePayload{ProjectID: episode.ProjectID, EpisodeID: episodeID})
}

// StartQuickDraft is the explicit alternate entry path that bypasses
// the review gates for speed. It is never reachable from the strict
// pipeline: a dedicated mode flag, endpoint, and task type.
func (p *Pipeline) StartQuickDraft(ctx context.Context, projectID string) error {
	project, err := models.GetProjectByID(p.DB, projectID)
	if err != nil {
		return err
	}
	if project.Status != models.ProjectStatusDraft {
		return &models.InvalidTransitionError{
			Entity: "project", ID: project.ID,
			From: project.Status, To: "QUICK_DRAFT",
		}
	}
	if strings.TrimSpace(project.Logline) == "" {
		return fmt.Errorf("project %s has no logline", projectID)
	}
	if err := p.DB.Model(project).Updates(map[string]interface{}{
		"mode":       models.ProjectModeQuickDraft,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	return p.Queue.EnqueueQuickDraft(QuickDraftPayload{
		ProjectID: projectID,
		Logline:   project.Logline,
		Style:     project.StylePreset,
	})
}
