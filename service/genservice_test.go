package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGen fails a fixed number of times, then succeeds.
type scriptedGen struct {
	failures  int
	calls     int
	fallbacks int
	fbErr     error
}

func (g *scriptedGen) Name() string { return "scripted" }

func (g *scriptedGen) Generate(_ context.Context, _ GenRequest) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", errors.New("backend unavailable")
	}
	return "p1/images/s1.png", nil
}

func (g *scriptedGen) Fallback(_ context.Context, _ GenRequest) (string, error) {
	g.fallbacks++
	if g.fbErr != nil {
		return "", g.fbErr
	}
	return "p1/videos/s1_fallback.mp4", nil
}

func newTestGenService(gen Generator, cfg GenConfig) (*GenService, *[]time.Duration) {
	svc := NewGenService("test", gen, cfg)
	var sleeps []time.Duration
	svc.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return svc, &sleeps
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	gen := &scriptedGen{failures: 2}
	svc, sleeps := newTestGenService(gen, GenConfig{
		MaxRetries: 3, RetryDelay: time.Second, CostPerCall: 0.05,
	})

	res, err := svc.Execute(context.Background(), GenRequest{SceneID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RetriesUsed)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "scripted", res.Provider)
	// Linear backoff: delay x attempt number.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)

	m := svc.Metrics()
	assert.EqualValues(t, 1, m.TotalCalls)
	assert.EqualValues(t, 2, m.TotalErrors)
	assert.InDelta(t, 0.05, m.TotalCost, 1e-9)
}

func TestExecuteFallbackAfterExhaustion(t *testing.T) {
	gen := &scriptedGen{failures: 10}
	svc, _ := newTestGenService(gen, GenConfig{
		MaxRetries: 1, FallbackEnabled: true,
	})

	res, err := svc.Execute(context.Background(), GenRequest{SceneID: "s1"})
	require.NoError(t, err)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "scripted_fallback", res.Provider)
	assert.Equal(t, 1, gen.fallbacks)
	assert.Equal(t, 2, gen.calls, "retries run before fallback")
}

func TestExecuteFallbackDisabled(t *testing.T) {
	gen := &scriptedGen{failures: 10}
	svc, _ := newTestGenService(gen, GenConfig{MaxRetries: 1})

	_, err := svc.Execute(context.Background(), GenRequest{SceneID: "s1"})
	var exhausted *GenerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Nil(t, exhausted.FallbackErr)
	assert.Equal(t, 0, gen.fallbacks)
}

func TestExecuteFallbackFailureIsReported(t *testing.T) {
	gen := &scriptedGen{failures: 10, fbErr: errors.New("render crashed")}
	svc, _ := newTestGenService(gen, GenConfig{MaxRetries: 0, FallbackEnabled: true})

	_, err := svc.Execute(context.Background(), GenRequest{SceneID: "s1"})
	var exhausted *GenerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.EqualError(t, exhausted.FallbackErr, "render crashed")
}

// noFallbackGen implements Fallbacker but has no degraded mode.
type noFallbackGen struct{}

func (noFallbackGen) Name() string { return "nofb" }
func (noFallbackGen) Generate(context.Context, GenRequest) (string, error) {
	return "", errors.New("down")
}
func (noFallbackGen) Fallback(context.Context, GenRequest) (string, error) {
	return "", ErrFallbackNotImplemented
}

func TestExecuteFallbackNotImplementedIsNotAFailure(t *testing.T) {
	svc, _ := newTestGenService(noFallbackGen{}, GenConfig{MaxRetries: 0, FallbackEnabled: true})

	_, err := svc.Execute(context.Background(), GenRequest{SceneID: "s1"})
	var exhausted *GenerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	// Absent fallback reads as "never attempted", not "attempted and failed".
	assert.Nil(t, exhausted.FallbackErr)
}
