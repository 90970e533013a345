package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TaskOutcome is the structured result every asset task must report —
// the join callback inspects these by status, so a task never finishes
// silently.
type TaskOutcome struct {
	SceneID string `json:"scene_id"`
	Kind    string `json:"kind"` // "audio" | "image" | "video"
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate_blocked"
)

// ChordBarrier is the full barrier contract the worker depends on;
// production wires *ChordStore, tests inject an in-memory fake.
type ChordBarrier interface {
	Create(ctx context.Context, chordID string, members int) error
	RecordResult(ctx context.Context, chordID string, o TaskOutcome) (bool, error)
	Results(ctx context.Context, chordID string) ([]TaskOutcome, error)
	Cleanup(ctx context.Context, chordID string)
}

// ChordStore implements the two-level barrier over Redis: fan out N
// member tasks, collect all N results, fire exactly one continuation.
// Each member records its outcome and decrements the pending counter;
// whichever member brings it to zero reports done=true and its handler
// enqueues the callback task.
type ChordStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewChordStore(rdb *redis.Client) *ChordStore {
	return &ChordStore{rdb: rdb, ttl: 2 * time.Hour}
}

func chordPendingKey(id string) string { return "motionweaver:chord:pending:" + id }
func chordResultsKey(id string) string { return "motionweaver:chord:results:" + id }

// NewChordID builds a unique barrier id for a scope (scene or project).
func NewChordID(scope string) string {
	return scope + ":" + uuid.NewString()[:8]
}

// Create registers a barrier expecting `members` results.
func (c *ChordStore) Create(ctx context.Context, chordID string, members int) error {
	if members <= 0 {
		return fmt.Errorf("chord %s: members must be positive", chordID)
	}
	if err := c.rdb.Set(ctx, chordPendingKey(chordID), members, c.ttl).Err(); err != nil {
		return fmt.Errorf("create chord %s: %w", chordID, err)
	}
	return nil
}

// RecordResult stores one member outcome and reports whether this was
// the last pending member. At-least-once delivery makes duplicate
// records possible; the per-(scene,kind) hash field keeps them
// idempotent for the result set, and only the decrement to exactly
// zero reports done.
func (c *ChordStore) RecordResult(ctx context.Context, chordID string, o TaskOutcome) (bool, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return false, err
	}
	field := o.SceneID + ":" + o.Kind
	added, err := c.rdb.HSetNX(ctx, chordResultsKey(chordID), field, payload).Result()
	if err != nil {
		return false, fmt.Errorf("record chord result %s: %w", chordID, err)
	}
	c.rdb.Expire(ctx, chordResultsKey(chordID), c.ttl)
	if !added {
		// Redelivered task: result already counted.
		return false, nil
	}
	remaining, err := c.rdb.Decr(ctx, chordPendingKey(chordID)).Result()
	if err != nil {
		return false, err
	}
	return remaining == 0, nil
}

// Results returns all collected member outcomes for a completed barrier.
func (c *ChordStore) Results(ctx context.Context, chordID string) ([]TaskOutcome, error) {
	raw, err := c.rdb.HGetAll(ctx, chordResultsKey(chordID)).Result()
	if err != nil {
		return nil, err
	}
	outcomes := make([]TaskOutcome, 0, len(raw))
	for _, v := range raw {
		var o TaskOutcome
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			continue
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Cleanup drops the barrier keys once the continuation has run.
func (c *ChordStore) Cleanup(ctx context.Context, chordID string) {
	c.rdb.Del(ctx, chordPendingKey(chordID), chordResultsKey(chordID))
}

// FailedOutcomes returns the scene ids of members that did not succeed.
// A duplicate-blocked video counts as a missing clip for compose.
func FailedOutcomes(outcomes []TaskOutcome) []string {
	var failed []string
	for _, o := range outcomes {
		if o.Status != OutcomeOK {
			failed = append(failed, o.SceneID)
		}
	}
	return failed
}

// AllOK reports whether every member succeeded. An empty result set is
// not OK — a barrier with no results means members were lost.
func AllOK(outcomes []TaskOutcome) bool {
	return len(outcomes) > 0 && len(FailedOutcomes(outcomes)) == 0
}
