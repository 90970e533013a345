package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"MotionWeaver-server/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

// fakeLLM returns canned content per caller tag.
type fakeLLM struct {
	responses map[string]string
	err       error
	calls     []string
}

func (f *fakeLLM) Call(_ context.Context, _, _ string, _ bool, caller string) (string, error) {
	f.calls = append(f.calls, caller)
	if f.err != nil {
		return "", f.err
	}
	if r, ok := f.responses[caller]; ok {
		return r, nil
	}
	return "generated text", nil
}

// fakeQueue records enqueued payloads instead of touching a broker.
type fakeQueue struct {
	mu        sync.Mutex
	audio     []AssetPayload
	images    []AssetPayload
	videos    []AssetPayload
	callbacks []CallbackPayload
	composes  []ComposePayload
	drafts    []QuickDraftPayload
}

func (f *fakeQueue) EnqueueSceneAudio(p AssetPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, p)
	return nil
}

func (f *fakeQueue) EnqueueSceneImage(p AssetPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, p)
	return nil
}

func (f *fakeQueue) EnqueueSceneVideo(p AssetPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, p)
	return nil
}

func (f *fakeQueue) EnqueueCallback(_ string, p CallbackPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, p)
	return nil
}

func (f *fakeQueue) EnqueueCompose(p ComposePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.composes = append(f.composes, p)
	return nil
}

func (f *fakeQueue) EnqueueQuickDraft(p QuickDraftPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, p)
	return nil
}

// fakeNotifier swallows publishes.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) record(e string) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fakeNotifier) PublishSceneUpdate(_, sceneID, status string) {
	f.record("scene:" + sceneID + ":" + status)
}
func (f *fakeNotifier) PublishProjectUpdate(_, status string) { f.record("project:" + status) }
func (f *fakeNotifier) PublishDraftProgress(_, step string, _, _ int, _ string) {
	f.record("draft:" + step)
}
func (f *fakeNotifier) PublishComposeProgress(_ string, progress int, _ string) {
	f.record(fmt.Sprintf("compose:%d", progress))
}

// fakeChords is an in-memory barrier implementing the same counting and
// idempotency rules as the Redis store.
type fakeChords struct {
	mu      sync.Mutex
	created map[string]int
	pending map[string]int
	results map[string][]TaskOutcome
	cleaned []string
}

func newFakeChords() *fakeChords {
	return &fakeChords{
		created: make(map[string]int),
		pending: make(map[string]int),
		results: make(map[string][]TaskOutcome),
	}
}

func (f *fakeChords) Create(_ context.Context, chordID string, members int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[chordID] = members
	f.pending[chordID] = members
	return nil
}

func (f *fakeChords) RecordResult(_ context.Context, chordID string, o TaskOutcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prev := range f.results[chordID] {
		if prev.SceneID == o.SceneID && prev.Kind == o.Kind {
			return false, nil
		}
	}
	f.results[chordID] = append(f.results[chordID], o)
	f.pending[chordID]--
	return f.pending[chordID] == 0, nil
}

func (f *fakeChords) Results(_ context.Context, chordID string) ([]TaskOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TaskOutcome(nil), f.results[chordID]...), nil
}

func (f *fakeChords) Cleanup(_ context.Context, chordID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, chordID)
}

// seedChord preloads a completed barrier's result set.
func (f *fakeChords) seedChord(chordID string, outcomes ...TaskOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[chordID] = outcomes
	f.pending[chordID] = 0
}

func newTestPipeline(t *testing.T) (*Pipeline, *gorm.DB, *fakeQueue, *fakeChords, *fakeLLM) {
	t.Helper()
	db := openTestDB(t)
	llm := &fakeLLM{responses: map[string]string{}}
	queue := &fakeQueue{}
	chords := newFakeChords()
	p := &Pipeline{
		DB:       db,
		LLM:      llm,
		Queue:    queue,
		Notifier: &fakeNotifier{},
		Chords:   chords,
	}
	return p, db, queue, chords, llm
}
