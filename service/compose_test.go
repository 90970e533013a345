package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeScenesRejectsEmptyInput(t *testing.T) {
	err := ComposeScenes(context.Background(), nil, filepath.Join(t.TempDir(), "out.mp4"), nil)
	require.Error(t, err)
}

func TestComposeScenesNeverReportsCompletionBeforeEncode(t *testing.T) {
	type call struct{ done, total int }
	var calls []call

	// Nonexistent clips: ffmpeg (or its absence) fails the encode.
	clips := []string{
		filepath.Join(t.TempDir(), "missing1.mp4"),
		filepath.Join(t.TempDir(), "missing2.mp4"),
	}
	err := ComposeScenes(context.Background(), clips, filepath.Join(t.TempDir(), "out.mp4"),
		func(done, total int) { calls = append(calls, call{done, total}) })
	require.Error(t, err)

	// Writing the concat list must not drive the progress counter, and a
	// failed encode must never have reported completion.
	require.Len(t, calls, 1)
	assert.Equal(t, call{0, 2}, calls[0])
	for _, c := range calls {
		assert.Less(t, c.done, c.total, "completion reported without a successful encode")
	}
}
