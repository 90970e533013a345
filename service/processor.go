package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"MotionWeaver-server/config"
	"MotionWeaver-server/models"
)

const videoLockPrefix = "motionweaver:lock:video:"

// Processor hosts the asynq worker pool and the task handlers. Asset
// handlers never return an error for generation failures — those are
// recorded into the join barrier as member outcomes, and the queue-level
// retry budget is reserved for infrastructure faults (broker, DB).
type Processor struct {
	db       *gorm.DB
	cfg      *config.Config
	settings *config.SettingsStore
	rdb      *redis.Client
	queue    Enqueuer
	notifier Publisher
	chords   ChordBarrier
	pipeline *Pipeline
	storage  *Storage // nil when MinIO is not configured

	imageRouter *Router
	videoRouter *Router
	ttsRouter   *Router

	metrics *metricsRegistry

	server *asynq.Server
}

func NewProcessor(
	db *gorm.DB,
	cfg *config.Config,
	settings *config.SettingsStore,
	rdb *redis.Client,
	queue Enqueuer,
	notifier Publisher,
	chords ChordBarrier,
	pipeline *Pipeline,
	storage *Storage,
) *Processor {
	return &Processor{
		db:          db,
		cfg:         cfg,
		settings:    settings,
		rdb:         rdb,
		queue:       queue,
		notifier:    notifier,
		chords:      chords,
		pipeline:    pipeline,
		storage:     storage,
		imageRouter: BuildImageRouter(cfg),
		videoRouter: BuildVideoRouter(cfg),
		ttsRouter:   BuildTTSRouter(cfg),
		metrics:     newMetricsRegistry(),
	}
}

// Start runs the worker pool in a background goroutine.
func (p *Processor) Start(redisOpt asynq.RedisClientOpt, concurrency int) error {
	p.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSceneAudio, p.HandleSceneAudio)
	mux.HandleFunc(TypeSceneImage, p.HandleSceneImage)
	mux.HandleFunc(TypeSceneVideo, p.HandleSceneVideo)
	mux.HandleFunc(TypeSceneReviewable, p.HandleSceneReviewable)
	mux.HandleFunc(TypeVideosDone, p.HandleVideosDone)
	mux.HandleFunc(TypeCompose, p.HandleCompose)
	mux.HandleFunc(TypeQuickDraft, p.HandleQuickDraft)

	return p.server.Start(mux)
}

func (p *Processor) Shutdown() {
	if p.server != nil {
		p.server.Shutdown()
	}
}

// genService builds a GenService over the given router with the current
// settings snapshot. Built per task so a live settings update applies to
// tasks started after it, never to ones already running.
func (p *Processor) genService(kind string, router *Router) *GenService {
	g := p.settings.Generation()
	cost := map[string]float64{
		"image": g.ImageCost,
		"video": g.VideoCost,
		"tts":   g.TTSCost,
	}[kind]
	return NewGenService(kind, router, GenConfig{
		MaxRetries:      g.MaxRetries,
		RetryDelay:      g.RetryDelay(),
		Timeout:         g.Timeout(),
		FallbackEnabled: g.FallbackEnabled,
		CostPerCall:     cost,
	})
}

// ---------------------------------------------------------------------------
// Phase 1: audio + image
// ---------------------------------------------------------------------------

func (p *Processor) HandleSceneAudio(ctx context.Context, t *asynq.Task) error {
	var payload AssetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	scene, err := models.GetSceneByID(p.db, payload.SceneID)
	if err != nil {
		return err
	}

	svc := p.genService("tts", p.ttsRouter)
	res, genErr := svc.Execute(ctx, GenRequest{
		ProjectID: scene.ProjectID,
		SceneID:   scene.ID,
		Prompt:    scene.DialogueText,
	})
	p.metrics.record("tts", svc.Metrics())

	outcome := TaskOutcome{SceneID: scene.ID, Kind: "audio"}
	if genErr != nil {
		outcome.Status = OutcomeError
		outcome.Error = genErr.Error()
		log.Printf("[Worker] audio for scene %s failed: %v", scene.ID, genErr)
	} else {
		duration, _ := probeDuration(ctx, filepath.Join(p.cfg.MediaVolume, res.Path))
		if err := scene.UpdateAudio(p.db, res.Path, duration); err != nil {
			return err
		}
		p.recordVersion(scene.ID, models.AssetTypeAudio, res.Path, scene.DialogueText, res.Provider)
		outcome.Status = OutcomeOK
		outcome.Path = res.Path
	}
	return p.finishAssetMember(ctx, payload, scene, outcome)
}

func (p *Processor) HandleSceneImage(ctx context.Context, t *asynq.Task) error {
	var payload AssetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	scene, err := models.GetSceneByID(p.db, payload.SceneID)
	if err != nil {
		return err
	}

	svc := p.genService("image", p.imageRouter)
	res, genErr := svc.Execute(ctx, GenRequest{
		ProjectID: scene.ProjectID,
		SceneID:   scene.ID,
		Prompt:    scene.PromptVisual,
		SfxText:   scene.SfxText,
	})
	p.metrics.record("image", svc.Metrics())

	outcome := TaskOutcome{SceneID: scene.ID, Kind: "image"}
	if genErr != nil {
		outcome.Status = OutcomeError
		outcome.Error = genErr.Error()
		log.Printf("[Worker] image for scene %s failed: %v", scene.ID, genErr)
	} else {
		if err := scene.UpdateImage(p.db, res.Path); err != nil {
			return err
		}
		p.recordVersion(scene.ID, models.AssetTypeImage, res.Path, scene.PromptVisual, res.Provider)
		outcome.Status = OutcomeOK
		outcome.Path = res.Path
	}
	return p.finishAssetMember(ctx, payload, scene, outcome)
}

// finishAssetMember records a phase-1 member outcome; whichever member
// completes the barrier enqueues the per-scene continuation.
func (p *Processor) finishAssetMember(ctx context.Context, payload AssetPayload, scene *models.Scene, outcome TaskOutcome) error {
	done, err := p.chords.RecordResult(ctx, payload.ChordID, outcome)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	return p.queue.EnqueueCallback(TypeSceneReviewable, CallbackPayload{
		ChordID:   payload.ChordID,
		SceneID:   scene.ID,
		ProjectID: scene.ProjectID,
	})
}

// HandleSceneReviewable is the phase-1 continuation: all asset members
// for one scene have reported. All OK moves the scene to REVIEW; any
// failure marks it ERROR. Either way the barrier is torn down.
func (p *Processor) HandleSceneReviewable(ctx context.Context, t *asynq.Task) error {
	var payload CallbackPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	scene, err := models.GetSceneByID(p.db, payload.SceneID)
	if err != nil {
		return err
	}
	outcomes, err := p.chords.Results(ctx, payload.ChordID)
	if err != nil {
		return err
	}

	if AllOK(outcomes) {
		if err := scene.TransitionTo(p.db, models.SceneStatusReview); err != nil {
			return err
		}
	} else {
		var msgs []string
		for _, o := range outcomes {
			if o.Status != OutcomeOK {
				msgs = append(msgs, o.Kind+": "+o.Error)
			}
		}
		if err := scene.MarkError(p.db, strings.Join(msgs, "; ")); err != nil {
			return err
		}
	}
	p.chords.Cleanup(ctx, payload.ChordID)
	p.notifier.PublishSceneUpdate(scene.ProjectID, scene.ID, scene.Status)

	total, reviewable, err := models.CountScenesReviewable(p.db, scene.ProjectID)
	if err == nil && total > 0 && reviewable == total {
		p.notifier.PublishProjectUpdate(scene.ProjectID, "ALL_SCENES_REVIEWABLE")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Phase 2: video
// ---------------------------------------------------------------------------

// HandleSceneVideo generates the clip for one approved scene. A redis
// SETNX mutex guards the scene: at-least-once delivery must never run
// the expensive video call twice concurrently. A blocked duplicate is
// still reported to the barrier so the group can complete.
func (p *Processor) HandleSceneVideo(ctx context.Context, t *asynq.Task) error {
	var payload AssetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	scene, err := models.GetSceneByID(p.db, payload.SceneID)
	if err != nil {
		return err
	}

	lockKey := videoLockPrefix + scene.ID
	locked, err := p.rdb.SetNX(ctx, lockKey, "1", p.settings.Generation().VideoLockTTL()).Result()
	if err != nil {
		return err
	}
	if !locked {
		log.Printf("[Worker] video for scene %s already in flight, skipping", scene.ID)
		return p.finishVideoMember(ctx, payload, scene, TaskOutcome{
			SceneID: scene.ID, Kind: "video", Status: OutcomeDuplicate,
			Error: "duplicate delivery blocked by lock",
		})
	}
	defer p.rdb.Del(context.Background(), lockKey)

	if err := scene.TransitionTo(p.db, models.SceneStatusVideoGen); err != nil {
		// Redelivery after the original already moved the scene on.
		return p.finishVideoMember(ctx, payload, scene, TaskOutcome{
			SceneID: scene.ID, Kind: "video", Status: OutcomeDuplicate,
			Error: err.Error(),
		})
	}
	p.notifier.PublishSceneUpdate(scene.ProjectID, scene.ID, scene.Status)

	svc := p.genService("video", p.videoRouter)
	res, genErr := svc.Execute(ctx, GenRequest{
		ProjectID: scene.ProjectID,
		SceneID:   scene.ID,
		Prompt:    scene.PromptMotion,
		ImagePath: scene.LocalImagePath,
		AudioPath: scene.LocalAudioPath,
	})
	p.metrics.record("video", svc.Metrics())

	outcome := TaskOutcome{SceneID: scene.ID, Kind: "video"}
	if genErr != nil {
		outcome.Status = OutcomeError
		outcome.Error = genErr.Error()
		if err := scene.MarkError(p.db, genErr.Error()); err != nil {
			return err
		}
	} else {
		duration, _ := probeDuration(ctx, filepath.Join(p.cfg.MediaVolume, res.Path))
		if err := scene.UpdateVideo(p.db, res.Path, duration); err != nil {
			return err
		}
		p.recordVersion(scene.ID, models.AssetTypeVideo, res.Path, scene.PromptMotion, res.Provider)
		if err := scene.TransitionTo(p.db, models.SceneStatusReady); err != nil {
			return err
		}
		outcome.Status = OutcomeOK
		outcome.Path = res.Path
	}
	p.notifier.PublishSceneUpdate(scene.ProjectID, scene.ID, scene.Status)
	return p.finishVideoMember(ctx, payload, scene, outcome)
}

func (p *Processor) finishVideoMember(ctx context.Context, payload AssetPayload, scene *models.Scene, outcome TaskOutcome) error {
	done, err := p.chords.RecordResult(ctx, payload.ChordID, outcome)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	cb := CallbackPayload{
		ChordID:   payload.ChordID,
		ProjectID: scene.ProjectID,
	}
	if scene.EpisodeID != nil {
		cb.EpisodeID = *scene.EpisodeID
	}
	return p.queue.EnqueueCallback(TypeVideosDone, cb)
}

// HandleVideosDone is the phase-2 continuation for one approval group.
// Any failed or duplicate-blocked member blocks composition — a final
// cut with missing clips must never be produced. With every member OK,
// composition starts only once every scene in scope is READY (other
// scenes may still be awaiting approval).
func (p *Processor) HandleVideosDone(ctx context.Context, t *asynq.Task) error {
	var payload CallbackPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	outcomes, err := p.chords.Results(ctx, payload.ChordID)
	if err != nil {
		return err
	}
	defer p.chords.Cleanup(ctx, payload.ChordID)

	if failed := FailedOutcomes(outcomes); len(failed) > 0 {
		log.Printf("[Worker] video group %s blocked, failed scenes: %v", payload.ChordID, failed)
		p.notifier.PublishProjectUpdate(payload.ProjectID, "COMPOSE_BLOCKED")
		return nil
	}

	var composeErr error
	if payload.EpisodeID != "" {
		composeErr = p.pipeline.StartEpisodeCompose(ctx, payload.EpisodeID)
	} else {
		composeErr = p.pipeline.StartCompose(ctx, payload.ProjectID)
	}
	if composeErr != nil {
		// Scenes outside this group not READY yet: wait for their groups.
		var blocked *AggregateBlockedError
		if errors.As(composeErr, &blocked) {
			log.Printf("[Worker] group %s done but %d scenes not ready, waiting", payload.ChordID, len(blocked.Failed))
			return nil
		}
		return composeErr
	}
	return nil
}

// ---------------------------------------------------------------------------
// Composition
// ---------------------------------------------------------------------------

func (p *Processor) HandleCompose(ctx context.Context, t *asynq.Task) error {
	var payload ComposePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.EpisodeID != "" {
		return p.composeEpisode(ctx, payload)
	}
	return p.composeProject(ctx, payload.ProjectID)
}

func (p *Processor) composeProject(ctx context.Context, projectID string) error {
	project, err := models.GetProjectByID(p.db, projectID)
	if err != nil {
		return err
	}
	scenes, err := models.GetScenesByProjectID(p.db, projectID)
	if err != nil {
		return err
	}

	rel := filepath.Join(projectID, "final", "final.mp4")
	if err := p.composeClips(ctx, projectID, scenes, rel); err != nil {
		if rbErr := project.TransitionTo(p.db, models.ProjectStatusProduction); rbErr != nil {
			log.Printf("[Worker] rollback after compose failure: %v", rbErr)
		}
		p.notifier.PublishProjectUpdate(projectID, project.Status)
		return err
	}

	finalPath := rel
	if p.storage != nil {
		if url, upErr := p.storage.UploadVideo(ctx, filepath.Join(p.cfg.MediaVolume, rel), rel); upErr != nil {
			log.Printf("[Worker] final upload failed, keeping local path: %v", upErr)
		} else {
			finalPath = url
		}
	}
	if err := p.db.Model(project).Updates(map[string]interface{}{
		"final_video_path": finalPath,
		"updated_at":       time.Now(),
	}).Error; err != nil {
		return err
	}
	if err := project.TransitionTo(p.db, models.ProjectStatusCompleted); err != nil {
		return err
	}
	p.notifier.PublishProjectUpdate(projectID, project.Status)
	return nil
}

func (p *Processor) composeEpisode(ctx context.Context, payload ComposePayload) error {
	episode, err := models.GetEpisodeByID(p.db, payload.EpisodeID)
	if err != nil {
		return err
	}
	scenes, err := models.GetScenesByEpisodeID(p.db, payload.EpisodeID)
	if err != nil {
		return err
	}

	rel := filepath.Join(payload.ProjectID, "final", fmt.Sprintf("episode_%d.mp4", episode.EpisodeNumber))
	if err := p.composeClips(ctx, payload.ProjectID, scenes, rel); err != nil {
		if rbErr := episode.TransitionTo(p.db, models.EpisodeStatusProduction); rbErr != nil {
			log.Printf("[Worker] episode rollback after compose failure: %v", rbErr)
		}
		return err
	}

	finalPath := rel
	if p.storage != nil {
		if url, upErr := p.storage.UploadVideo(ctx, filepath.Join(p.cfg.MediaVolume, rel), rel); upErr != nil {
			log.Printf("[Worker] episode upload failed, keeping local path: %v", upErr)
		} else {
			finalPath = url
		}
	}
	if err := p.db.Model(episode).Updates(map[string]interface{}{
		"final_video_path": finalPath,
		"updated_at":       time.Now(),
	}).Error; err != nil {
		return err
	}
	if err := episode.TransitionTo(p.db, models.EpisodeStatusCompleted); err != nil {
		return err
	}
	p.notifier.PublishProjectUpdate(payload.ProjectID, "episode:"+episode.Status)
	return nil
}

// composeClips validates readiness, concatenates in sequence order and
// streams progress over the notifier.
func (p *Processor) composeClips(ctx context.Context, projectID string, scenes []models.Scene, outRel string) error {
	var clips []string
	for _, s := range scenes {
		if s.Status != models.SceneStatusReady || s.LocalVideoPath == "" {
			return fmt.Errorf("scene %s not ready for compose (status %s)", s.ID, s.Status)
		}
		clips = append(clips, filepath.Join(p.cfg.MediaVolume, s.LocalVideoPath))
	}
	if len(clips) == 0 {
		return fmt.Errorf("project %s has no clips", projectID)
	}
	return ComposeScenes(ctx, clips, filepath.Join(p.cfg.MediaVolume, outRel), func(done, total int) {
		p.notifier.PublishComposeProgress(projectID, done*100/total, fmt.Sprintf("composing %d/%d", done, total))
	})
}

// ---------------------------------------------------------------------------
// Quick draft
// ---------------------------------------------------------------------------

const draftTotalSteps = 7

// HandleQuickDraft runs the whole pipeline for one project in a single
// task, no review gates: outline, script, scenes, then per-scene assets
// and the final cut. Progress goes out over pub/sub and is mirrored into
// the project row for clients that poll.
func (p *Processor) HandleQuickDraft(ctx context.Context, t *asynq.Task) error {
	var payload QuickDraftPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	project, err := models.GetProjectByID(p.db, payload.ProjectID)
	if err != nil {
		return err
	}

	step := func(n int, name, message string) {
		p.notifier.PublishDraftProgress(project.ID, name, n, draftTotalSteps, message)
		p.saveDraftProgress(project.ID, name, n, message)
	}

	step(1, "outline", "writing world outline")
	outline, err := p.pipeline.LLM.Call(ctx, outlineSystemPrompt, payload.Logline, false, "draft_outline")
	if err != nil {
		return p.failDraft(project, "outline", err)
	}
	if err := p.db.Model(project).Update("world_outline", outline).Error; err != nil {
		return err
	}
	if err := project.TransitionTo(p.db, models.ProjectStatusOutlineReview); err != nil {
		return err
	}

	step(2, "script", "writing script")
	script, err := p.pipeline.LLM.Call(ctx, scriptSystemPrompt, outline, false, "draft_script")
	if err != nil {
		return p.failDraft(project, "script", err)
	}
	if err := p.db.Model(project).Update("full_script", script).Error; err != nil {
		return err
	}
	if err := project.TransitionTo(p.db, models.ProjectStatusScriptReview); err != nil {
		return err
	}

	step(3, "scenes", "splitting storyboard")
	raw, err := p.pipeline.LLM.Call(ctx, scenesSystemPrompt, script, true, "draft_scenes")
	if err != nil {
		return p.failDraft(project, "scenes", err)
	}
	scenes, err := p.pipeline.buildScenes(project.ID, nil, raw)
	if err != nil {
		return p.failDraft(project, "scenes", err)
	}
	if err := models.BatchCreateScenes(p.db, scenes); err != nil {
		return err
	}
	if err := project.TransitionTo(p.db, models.ProjectStatusStoryboard); err != nil {
		return err
	}
	if err := project.TransitionTo(p.db, models.ProjectStatusProduction); err != nil {
		return err
	}

	step(4, "images", fmt.Sprintf("rendering %d images", len(scenes)))
	imageSvc := p.genService("image", p.imageRouter)
	audioSvc := p.genService("tts", p.ttsRouter)
	videoSvc := p.genService("video", p.videoRouter)

	for i := range scenes {
		scene := &scenes[i]
		if err := scene.TransitionTo(p.db, models.SceneStatusGenerating); err != nil {
			return err
		}
		res, genErr := imageSvc.Execute(ctx, GenRequest{
			ProjectID: project.ID, SceneID: scene.ID,
			Prompt: scene.PromptVisual, SfxText: scene.SfxText,
		})
		if genErr != nil {
			return p.failDraft(project, "images", genErr)
		}
		if err := scene.UpdateImage(p.db, res.Path); err != nil {
			return err
		}
		scene.LocalImagePath = res.Path
	}

	step(5, "audio", "synthesizing dialogue")
	for i := range scenes {
		scene := &scenes[i]
		if strings.TrimSpace(scene.DialogueText) == "" {
			continue
		}
		res, genErr := audioSvc.Execute(ctx, GenRequest{
			ProjectID: project.ID, SceneID: scene.ID, Prompt: scene.DialogueText,
		})
		if genErr != nil {
			return p.failDraft(project, "audio", genErr)
		}
		duration, _ := probeDuration(ctx, filepath.Join(p.cfg.MediaVolume, res.Path))
		if err := scene.UpdateAudio(p.db, res.Path, duration); err != nil {
			return err
		}
		scene.LocalAudioPath = res.Path
	}

	step(6, "videos", fmt.Sprintf("animating %d scenes", len(scenes)))
	for i := range scenes {
		scene := &scenes[i]
		// Walk the gate states so the table holds even in draft mode.
		if err := scene.TransitionTo(p.db, models.SceneStatusReview); err != nil {
			return err
		}
		if err := scene.TransitionTo(p.db, models.SceneStatusApproved); err != nil {
			return err
		}
		if err := scene.TransitionTo(p.db, models.SceneStatusVideoGen); err != nil {
			return err
		}
		res, genErr := videoSvc.Execute(ctx, GenRequest{
			ProjectID: project.ID, SceneID: scene.ID,
			Prompt:    scene.PromptMotion,
			ImagePath: scene.LocalImagePath,
			AudioPath: scene.LocalAudioPath,
		})
		if genErr != nil {
			return p.failDraft(project, "videos", genErr)
		}
		duration, _ := probeDuration(ctx, filepath.Join(p.cfg.MediaVolume, res.Path))
		if err := scene.UpdateVideo(p.db, res.Path, duration); err != nil {
			return err
		}
		scene.LocalVideoPath = res.Path
		if err := scene.TransitionTo(p.db, models.SceneStatusReady); err != nil {
			return err
		}
	}

	step(7, "compose", "cutting final video")
	if err := project.TransitionTo(p.db, models.ProjectStatusComposing); err != nil {
		return err
	}
	if err := p.composeProject(ctx, project.ID); err != nil {
		return p.failDraft(project, "compose", err)
	}
	step(7, "done", "draft complete")
	return nil
}

func (p *Processor) saveDraftProgress(projectID, step string, current int, message string) {
	snapshot, _ := json.Marshal(map[string]interface{}{
		"step":       step,
		"current":    current,
		"total":      draftTotalSteps,
		"message":    message,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err := p.db.Model(&models.Project{}).Where("id = ?", projectID).
		Update("draft_progress", string(snapshot)).Error; err != nil {
		log.Printf("[Worker] save draft progress failed: %v", err)
	}
}

func (p *Processor) failDraft(project *models.Project, step string, cause error) error {
	log.Printf("[Worker] quick draft for project %s failed at %s: %v", project.ID, step, cause)
	p.notifier.PublishDraftProgress(project.ID, step, 0, draftTotalSteps, "failed: "+cause.Error())
	p.saveDraftProgress(project.ID, step+"_failed", 0, cause.Error())
	// Draft tasks have no queue retries; surface the cause in the row.
	return fmt.Errorf("%w: quick draft step %s: %v", asynq.SkipRetry, step, cause)
}

func (p *Processor) recordVersion(sceneID, assetType, path, prompt, provider string) {
	v := &models.AssetVersion{
		ID:         newID(),
		SceneID:    sceneID,
		AssetType:  assetType,
		LocalPath:  path,
		PromptUsed: prompt,
		Provider:   provider,
		CreatedAt:  time.Now(),
	}
	if err := models.RecordAssetVersion(p.db, v); err != nil {
		log.Printf("[Worker] record asset version failed: %v", err)
	}
}

// Metrics returns per-kind generation counters for the ops endpoint.
func (p *Processor) Metrics() map[string]GenMetrics {
	return p.metrics.snapshot()
}
