package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectForwardPath(t *testing.T) {
	path := []string{
		ProjectStatusDraft,
		ProjectStatusOutlineReview,
		ProjectStatusScriptReview,
		ProjectStatusStoryboard,
		ProjectStatusProduction,
		ProjectStatusComposing,
		ProjectStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, ProjectCanTransition(path[i], path[i+1]),
			"%s -> %s must be allowed", path[i], path[i+1])
	}
}

func TestProjectRollbacksAreOneStep(t *testing.T) {
	rollbacks := map[string]string{
		ProjectStatusOutlineReview: ProjectStatusDraft,
		ProjectStatusScriptReview:  ProjectStatusOutlineReview,
		ProjectStatusStoryboard:    ProjectStatusScriptReview,
		ProjectStatusProduction:    ProjectStatusStoryboard,
		ProjectStatusComposing:     ProjectStatusProduction,
	}
	for from, to := range rollbacks {
		assert.True(t, ProjectCanTransition(from, to), "%s -> %s rollback", from, to)
	}

	// Multi-step jumps in either direction are rejected.
	assert.False(t, ProjectCanTransition(ProjectStatusDraft, ProjectStatusScriptReview))
	assert.False(t, ProjectCanTransition(ProjectStatusProduction, ProjectStatusOutlineReview))
	assert.False(t, ProjectCanTransition(ProjectStatusDraft, ProjectStatusCompleted))
}

func TestProjectCompletedIsTerminal(t *testing.T) {
	for _, target := range []string{
		ProjectStatusDraft, ProjectStatusOutlineReview, ProjectStatusScriptReview,
		ProjectStatusStoryboard, ProjectStatusProduction, ProjectStatusComposing,
	} {
		assert.False(t, ProjectCanTransition(ProjectStatusCompleted, target))
	}
}

func TestProjectUnknownStatusHasNoTransitions(t *testing.T) {
	assert.False(t, ProjectCanTransition("BOGUS", ProjectStatusDraft))
	assert.False(t, ProjectCanTransition(ProjectStatusDraft, "BOGUS"))
}

func TestProjectIsRollback(t *testing.T) {
	p := &Project{Status: ProjectStatusScriptReview}
	assert.True(t, p.IsRollback(ProjectStatusOutlineReview))
	assert.False(t, p.IsRollback(ProjectStatusStoryboard))
	assert.False(t, p.IsRollback(ProjectStatusScriptReview))
}
