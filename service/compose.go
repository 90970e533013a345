package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// RenderStillVideo builds a clip from a still image, panning slowly for
// the audio's duration (5s when there is no audio track). This is the
// local fallback when every video provider is down.
func RenderStillVideo(ctx context.Context, imagePath, audioPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	duration := 5.0
	hasAudio := audioPath != ""
	if hasAudio {
		if d, err := probeDuration(ctx, audioPath); err == nil && d > 0 {
			duration = d
		}
	}

	args := []string{"-y", "-loop", "1", "-i", imagePath}
	if hasAudio {
		args = append(args, "-i", audioPath)
	}
	args = append(args,
		"-vf", "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,zoompan=z='min(zoom+0.0008,1.1)':d=1:s=1080x1920",
		"-t", strconv.FormatFloat(duration, 'f', 2, 64),
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-r", "25",
	)
	if hasAudio {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg still render: %w: %s", err, tailOf(out))
	}
	return nil
}

// ComposeScenes concatenates the given clips, in order, into outPath
// using the concat demuxer. Re-encode rather than stream-copy: clips
// come from different providers with different codec parameters.
func ComposeScenes(ctx context.Context, clipPaths []string, outPath string, onProgress func(done, total int)) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to compose")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	listFile, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(listFile.Name())
	for _, clip := range clipPaths {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)); err != nil {
			return err
		}
	}
	if err := listFile.Close(); err != nil {
		return err
	}

	// Progress brackets the encode itself; completion is reported only
	// after ffmpeg succeeds.
	if onProgress != nil {
		onProgress(0, len(clipPaths))
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-f", "concat", "-safe", "0", "-i", listFile.Name(),
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-r", "25",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, tailOf(out))
	}
	if onProgress != nil {
		onProgress(len(clipPaths), len(clipPaths))
	}
	log.Printf("[Compose] wrote %s from %d clips", outPath, len(clipPaths))
	return nil
}

// probeDuration reads a media file's duration in seconds via ffprobe.
func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

// tailOf keeps the last chunk of ffmpeg stderr for error messages; the
// useful part is always at the end.
func tailOf(out []byte) string {
	const max = 400
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
