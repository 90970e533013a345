package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailedOutcomes(t *testing.T) {
	outcomes := []TaskOutcome{
		{SceneID: "a", Kind: "audio", Status: OutcomeOK},
		{SceneID: "a", Kind: "image", Status: OutcomeError, Error: "boom"},
		{SceneID: "b", Kind: "video", Status: OutcomeDuplicate},
		{SceneID: "c", Kind: "video", Status: OutcomeOK},
	}
	failed := FailedOutcomes(outcomes)
	assert.ElementsMatch(t, []string{"a", "b"}, failed,
		"errors and duplicate-blocked members both count as failed")
}

func TestAllOK(t *testing.T) {
	assert.False(t, AllOK(nil), "empty result set means lost members")
	assert.False(t, AllOK([]TaskOutcome{{SceneID: "a", Status: OutcomeError}}))
	assert.False(t, AllOK([]TaskOutcome{
		{SceneID: "a", Status: OutcomeOK},
		{SceneID: "b", Status: OutcomeDuplicate},
	}))
	assert.True(t, AllOK([]TaskOutcome{
		{SceneID: "a", Status: OutcomeOK},
		{SceneID: "b", Status: OutcomeOK},
	}))
}

func TestNewChordIDCarriesScope(t *testing.T) {
	id := NewChordID("scene:abc")
	assert.True(t, strings.HasPrefix(id, "scene:abc:"))
	assert.NotEqual(t, id, NewChordID("scene:abc"), "ids must be unique per barrier")
}
