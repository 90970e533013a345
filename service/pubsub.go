package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "motionweaver:ws:"

// Publisher is the worker-facing side of the progress bridge. Publishes
// are fire-and-forget: a dropped notification must never fail or retry
// the task that produced it.
type Publisher interface {
	PublishSceneUpdate(projectID, sceneID, status string)
	PublishProjectUpdate(projectID, status string)
	PublishDraftProgress(projectID, step string, current, total int, message string)
	PublishComposeProgress(projectID string, progress int, message string)
}

// Notifier bridges background workers to live websocket clients over
// Redis Pub/Sub. The underlying client is shared for the process
// lifetime; individual subscribers never tear it down.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) PublishSceneUpdate(projectID, sceneID, status string) {
	n.publish(projectID, map[string]interface{}{
		"type":     "scene_update",
		"scene_id": sceneID,
		"status":   status,
	})
}

func (n *Notifier) PublishProjectUpdate(projectID, status string) {
	n.publish(projectID, map[string]interface{}{
		"type":   "project_update",
		"status": status,
	})
}

func (n *Notifier) PublishDraftProgress(projectID, step string, current, total int, message string) {
	n.publish(projectID, map[string]interface{}{
		"type":    "draft_progress",
		"step":    step,
		"current": current,
		"total":   total,
		"message": message,
	})
}

func (n *Notifier) PublishComposeProgress(projectID string, progress int, message string) {
	n.publish(projectID, map[string]interface{}{
		"type":     "compose_progress",
		"progress": progress,
		"message":  message,
	})
}

func (n *Notifier) publish(projectID string, message map[string]interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("[PubSub] marshal notification failed: %v", err)
		return
	}
	if err := n.rdb.Publish(context.Background(), channelPrefix+projectID, payload).Err(); err != nil {
		log.Printf("[PubSub] publish failed for project %s: %v", projectID, err)
	}
}

// Subscribe opens a per-project subscription. The caller owns the
// returned handle and must Close it on disconnect; closing it releases
// only this subscription, not the shared client.
func (n *Notifier) Subscribe(ctx context.Context, projectID string) *redis.PubSub {
	return n.rdb.Subscribe(ctx, channelPrefix+projectID)
}
