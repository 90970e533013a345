package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpisodeForwardPath(t *testing.T) {
	path := []string{
		EpisodeStatusScriptGenerating,
		EpisodeStatusScriptReview,
		EpisodeStatusStoryboard,
		EpisodeStatusProduction,
		EpisodeStatusComposing,
		EpisodeStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, EpisodeCanTransition(path[i], path[i+1]),
			"%s -> %s must be allowed", path[i], path[i+1])
	}
}

func TestEpisodeCompletedReopens(t *testing.T) {
	// A finished episode can be rewritten or recomposed.
	assert.True(t, EpisodeCanTransition(EpisodeStatusCompleted, EpisodeStatusScriptReview))
	assert.True(t, EpisodeCanTransition(EpisodeStatusCompleted, EpisodeStatusComposing))
	assert.False(t, EpisodeCanTransition(EpisodeStatusCompleted, EpisodeStatusProduction))
}

func TestEpisodeRejectsJumps(t *testing.T) {
	assert.False(t, EpisodeCanTransition(EpisodeStatusScriptGenerating, EpisodeStatusStoryboard))
	assert.False(t, EpisodeCanTransition(EpisodeStatusStoryboard, EpisodeStatusComposing))
	assert.False(t, EpisodeCanTransition(EpisodeStatusProduction, EpisodeStatusScriptReview))
}
