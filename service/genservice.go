package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// GenRequest is one unit of external generation work. Flat strings only
// — the same shape crosses the task queue.
type GenRequest struct {
	ProjectID string
	SceneID   string
	Prompt    string
	SfxText   string
	ImagePath string // input image for video generation
	AudioPath string // input audio for lip-synced video
}

// Generator is a single backend capable of one generation kind. It
// returns the artifact path relative to the media volume, or an error.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenRequest) (string, error)
}

// Fallbacker is an optional degraded mode for a Generator (e.g. a local
// render without an AI backend). Implementations return
// ErrFallbackNotImplemented when they have nothing to offer.
type Fallbacker interface {
	Fallback(ctx context.Context, req GenRequest) (string, error)
}

type GenConfig struct {
	MaxRetries      int
	RetryDelay      time.Duration
	Timeout         time.Duration
	FallbackEnabled bool
	CostPerCall     float64
}

// GenResult is the standardized outcome of GenService.Execute.
type GenResult struct {
	Path         string
	Provider     string
	LatencyMS    int64
	CostEstimate float64
	RetriesUsed  int
	FallbackUsed bool
}

// GenMetrics is an operational snapshot — visibility only, never used
// for routing decisions.
type GenMetrics struct {
	Service        string  `json:"service"`
	TotalCalls     int64   `json:"total_calls"`
	TotalCost      float64 `json:"total_cost"`
	TotalErrors    int64   `json:"total_errors"`
	TotalLatencyMS int64   `json:"total_latency_ms"`
}

// GenService wraps any Generator with retry, timeout, fallback and cost
// tracking. One Execute call performs at most one network attempt at a
// time; concurrency comes from callers running Execute in parallel.
type GenService struct {
	name string
	gen  Generator
	cfg  GenConfig

	mu           sync.Mutex
	totalCalls   int64
	totalCost    float64
	totalErrors  int64
	totalLatency int64

	sleep func(time.Duration) // test seam
}

func NewGenService(name string, gen Generator, cfg GenConfig) *GenService {
	return &GenService{name: name, gen: gen, cfg: cfg, sleep: time.Sleep}
}

// Execute runs the generation with up to MaxRetries+1 attempts and
// linear backoff (RetryDelay × attempt number) between them. When all
// attempts fail and fallback is enabled, the fallback runs exactly once.
func (s *GenService) Execute(ctx context.Context, req GenRequest) (*GenResult, error) {
	s.mu.Lock()
	s.totalCalls++
	s.mu.Unlock()

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if s.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		}
		path, err := s.gen.Generate(attemptCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			latency := time.Since(start).Milliseconds()
			s.mu.Lock()
			s.totalCost += s.cfg.CostPerCall
			s.totalLatency += latency
			s.mu.Unlock()
			return &GenResult{
				Path:         path,
				Provider:     s.gen.Name(),
				LatencyMS:    latency,
				CostEstimate: s.cfg.CostPerCall,
				RetriesUsed:  attempt,
			}, nil
		}

		lastErr = err
		s.mu.Lock()
		s.totalErrors++
		s.mu.Unlock()
		log.Printf("[GenService] %s attempt %d/%d failed: %v", s.name, attempt+1, s.cfg.MaxRetries+1, err)

		if attempt < s.cfg.MaxRetries {
			s.sleep(s.cfg.RetryDelay * time.Duration(attempt+1))
		}
	}

	if s.cfg.FallbackEnabled {
		if fb, ok := s.gen.(Fallbacker); ok {
			log.Printf("[GenService] %s: attempting fallback", s.name)
			path, fbErr := fb.Fallback(ctx, req)
			if fbErr == nil {
				latency := time.Since(start).Milliseconds()
				s.mu.Lock()
				s.totalLatency += latency
				s.mu.Unlock()
				return &GenResult{
					Path:         path,
					Provider:     s.gen.Name() + "_fallback",
					LatencyMS:    latency,
					RetriesUsed:  s.cfg.MaxRetries,
					FallbackUsed: true,
				}, nil
			}
			if fbErr != ErrFallbackNotImplemented {
				log.Printf("[GenService] %s fallback failed: %v", s.name, fbErr)
				return nil, &GenerationExhaustedError{
					Service:     s.name,
					Attempts:    s.cfg.MaxRetries + 1,
					LastErr:     lastErr,
					FallbackErr: fbErr,
				}
			}
		}
	}

	return nil, &GenerationExhaustedError{
		Service:  s.name,
		Attempts: s.cfg.MaxRetries + 1,
		LastErr:  lastErr,
	}
}

func (s *GenService) Metrics() GenMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GenMetrics{
		Service:        s.name,
		TotalCalls:     s.totalCalls,
		TotalCost:      s.totalCost,
		TotalErrors:    s.totalErrors,
		TotalLatencyMS: s.totalLatency,
	}
}
