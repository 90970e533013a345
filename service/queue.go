package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Task kinds. Payloads are flat primitives only — the queue serializes
// to JSON and the broker should never see complex object graphs.
const (
	TypeSceneAudio      = "asset:audio"
	TypeSceneImage      = "asset:image"
	TypeSceneVideo      = "asset:video"
	TypeSceneReviewable = "callback:scene_reviewable"
	TypeVideosDone      = "callback:videos_done"
	TypeCompose         = "compose:final"
	TypeQuickDraft      = "draft:run"
)

// AssetPayload drives the per-scene asset tasks. ChordID ties the task
// to the join barrier its result must be recorded into.
type AssetPayload struct {
	SceneID   string `json:"scene_id"`
	ProjectID string `json:"project_id"`
	ChordID   string `json:"chord_id"`
}

// CallbackPayload drives the chord continuation tasks.
type CallbackPayload struct {
	ChordID   string `json:"chord_id"`
	SceneID   string `json:"scene_id,omitempty"`
	ProjectID string `json:"project_id"`
	EpisodeID string `json:"episode_id,omitempty"`
}

// ComposePayload drives final composition, project- or episode-scoped.
type ComposePayload struct {
	ProjectID string `json:"project_id"`
	EpisodeID string `json:"episode_id,omitempty"`
}

// QuickDraftPayload drives the one-shot draft pipeline.
type QuickDraftPayload struct {
	ProjectID string `json:"project_id"`
	Logline   string `json:"logline"`
	Style     string `json:"style"`
}

// Enqueuer is what the pipeline coordinators depend on to schedule
// work; tests inject a recording fake.
type Enqueuer interface {
	EnqueueSceneAudio(p AssetPayload) error
	EnqueueSceneImage(p AssetPayload) error
	EnqueueSceneVideo(p AssetPayload) error
	EnqueueCallback(taskType string, p CallbackPayload) error
	EnqueueCompose(p ComposePayload) error
	EnqueueQuickDraft(p QuickDraftPayload) error
}

// Queue wraps the asynq client with per-kind retry budgets and
// wall-clock limits.
type Queue struct {
	client *asynq.Client
}

func NewQueue(redisOpt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(redisOpt)}
}

func (q *Queue) Close() error { return q.client.Close() }

func (q *Queue) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	info, err := q.client.Enqueue(asynq.NewTask(taskType, body, opts...))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	log.Printf("[Queue] enqueued %s id=%s", taskType, info.ID)
	return nil
}

func (q *Queue) EnqueueSceneAudio(p AssetPayload) error {
	return q.enqueue(TypeSceneAudio, p, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

func (q *Queue) EnqueueSceneImage(p AssetPayload) error {
	return q.enqueue(TypeSceneImage, p, asynq.MaxRetry(2), asynq.Timeout(10*time.Minute))
}

func (q *Queue) EnqueueSceneVideo(p AssetPayload) error {
	// Video is the expensive step: one queue-level retry only, the
	// GenService inside the handler owns fine-grained retries.
	return q.enqueue(TypeSceneVideo, p, asynq.MaxRetry(1), asynq.Timeout(20*time.Minute))
}

func (q *Queue) EnqueueCallback(taskType string, p CallbackPayload) error {
	return q.enqueue(taskType, p, asynq.MaxRetry(2), asynq.Timeout(time.Minute))
}

func (q *Queue) EnqueueCompose(p ComposePayload) error {
	return q.enqueue(TypeCompose, p, asynq.MaxRetry(1), asynq.Timeout(30*time.Minute))
}

func (q *Queue) EnqueueQuickDraft(p QuickDraftPayload) error {
	return q.enqueue(TypeQuickDraft, p, asynq.MaxRetry(0), asynq.Timeout(30*time.Minute))
}
