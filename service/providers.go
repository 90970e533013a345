package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"MotionWeaver-server/config"
)

// Router dispatches a generation request to an ordered provider chain:
// first provider first, next on any error, last error propagated. This
// is cross-provider substitution — a different backend each hop —
// unlike GenService's same-request degraded-mode fallback. The two
// layers compose: GenService retries the whole chain N times, then
// falls back locally.
type Router struct {
	kind      string
	providers []Generator
}

func NewRouter(kind string, providers ...Generator) *Router {
	return &Router{kind: kind, providers: providers}
}

func (r *Router) Name() string { return r.kind + "_router" }

func (r *Router) Generate(ctx context.Context, req GenRequest) (string, error) {
	var lastErr error
	for _, p := range r.providers {
		path, err := p.Generate(ctx, req)
		if err == nil {
			return path, nil
		}
		lastErr = err
		log.Printf("[Router] %s provider %s failed, trying next: %v", r.kind, p.Name(), err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured for %s", r.kind)
	}
	return "", lastErr
}

// BuildImageRouter / BuildVideoRouter / BuildTTSRouter assemble chains
// from the operator-configured provider name lists.
func BuildImageRouter(cfg *config.Config) *Router {
	if cfg.UseMockAPI {
		return NewRouter("image", &mockProvider{kind: "image", mediaVolume: cfg.MediaVolume})
	}
	var chain []Generator
	for _, name := range cfg.Providers.Image {
		switch name {
		case "flux":
			chain = append(chain, &fluxImage{cfg: cfg})
		case "openrouter":
			chain = append(chain, &openRouterImage{cfg: cfg})
		default:
			log.Printf("[Router] unknown image provider %q, skipping", name)
		}
	}
	return NewRouter("image", chain...)
}

func BuildVideoRouter(cfg *config.Config) *Router {
	if cfg.UseMockAPI {
		return NewRouter("video", &mockProvider{kind: "video", mediaVolume: cfg.MediaVolume})
	}
	var chain []Generator
	for _, name := range cfg.Providers.Video {
		switch name {
		case "seedance":
			chain = append(chain, &seedanceVideo{cfg: cfg})
		case "ffmpeg":
			chain = append(chain, &ffmpegVideo{mediaVolume: cfg.MediaVolume})
		default:
			log.Printf("[Router] unknown video provider %q, skipping", name)
		}
	}
	return NewRouter("video", chain...)
}

func BuildTTSRouter(cfg *config.Config) *Router {
	if cfg.UseMockAPI {
		return NewRouter("tts", &mockProvider{kind: "audio", mediaVolume: cfg.MediaVolume})
	}
	var chain []Generator
	for _, name := range cfg.Providers.TTS {
		switch name {
		case "indextts":
			chain = append(chain, &indexTTS{cfg: cfg})
		default:
			log.Printf("[Router] unknown tts provider %q, skipping", name)
		}
	}
	return NewRouter("tts", chain...)
}

// ---------------------------------------------------------------------------
// Concrete providers
// ---------------------------------------------------------------------------

type fluxImage struct{ cfg *config.Config }

func (f *fluxImage) Name() string { return "flux" }

func (f *fluxImage) Generate(ctx context.Context, req GenRequest) (string, error) {
	payload := map[string]interface{}{"prompt": req.Prompt}
	if req.SfxText != "" {
		payload["text_rendering"] = []string{req.SfxText}
	}
	resp, err := postJSON(ctx, f.Name(), f.cfg.ProviderAPI.FluxEndpoint+"/images/generations",
		f.cfg.ProviderAPI.FluxAPIKey, payload)
	if err != nil {
		return "", err
	}
	url := firstString(resp, "image_url", "url")
	if url == "" {
		return "", &ProviderError{Provider: f.Name(), Err: fmt.Errorf("response missing image url")}
	}
	rel := filepath.Join(req.ProjectID, "images", req.SceneID+".png")
	if err := downloadTo(ctx, url, filepath.Join(f.cfg.MediaVolume, rel)); err != nil {
		return "", &ProviderError{Provider: f.Name(), Retriable: true, Err: err}
	}
	return rel, nil
}

type openRouterImage struct{ cfg *config.Config }

func (o *openRouterImage) Name() string { return "openrouter" }

func (o *openRouterImage) Generate(ctx context.Context, req GenRequest) (string, error) {
	keys := o.cfg.LLMKeys()
	if len(keys) == 0 {
		return "", &ProviderError{Provider: o.Name(), Err: fmt.Errorf("no api key configured")}
	}
	payload := map[string]interface{}{
		"model":  "google/gemini-2.5-flash-image",
		"prompt": req.Prompt,
	}
	resp, err := postJSON(ctx, o.Name(), o.cfg.LLM.BaseURL+"/images/generations", keys[0], payload)
	if err != nil {
		return "", err
	}
	url := firstString(resp, "image_url", "url")
	if url == "" {
		return "", &ProviderError{Provider: o.Name(), Err: fmt.Errorf("response missing image url")}
	}
	rel := filepath.Join(req.ProjectID, "images", req.SceneID+".png")
	if err := downloadTo(ctx, url, filepath.Join(o.cfg.MediaVolume, rel)); err != nil {
		return "", &ProviderError{Provider: o.Name(), Retriable: true, Err: err}
	}
	return rel, nil
}

type seedanceVideo struct{ cfg *config.Config }

func (s *seedanceVideo) Name() string { return "seedance" }

func (s *seedanceVideo) Generate(ctx context.Context, req GenRequest) (string, error) {
	// Local assets go up as Base64 — never hand the cloud a localhost URL.
	imgB64, err := fileBase64(filepath.Join(s.cfg.MediaVolume, req.ImagePath))
	if err != nil {
		return "", &ProviderError{Provider: s.Name(), Err: fmt.Errorf("read image: %w", err)}
	}
	payload := map[string]interface{}{
		"prompt":   req.Prompt,
		"image":    imgB64,
		"lip_sync": true,
	}
	if req.AudioPath != "" {
		if audioB64, err := fileBase64(filepath.Join(s.cfg.MediaVolume, req.AudioPath)); err == nil {
			payload["audio"] = audioB64
		}
	}
	resp, err := postJSON(ctx, s.Name(), s.cfg.ProviderAPI.SeedanceEndpoint,
		s.cfg.ProviderAPI.SeedanceAPIKey, payload)
	if err != nil {
		return "", err
	}
	url := firstString(resp, "video_url", "url")
	if url == "" {
		return "", &ProviderError{Provider: s.Name(), Err: fmt.Errorf("response missing video url")}
	}
	rel := filepath.Join(req.ProjectID, "videos", req.SceneID+".mp4")
	if err := downloadTo(ctx, url, filepath.Join(s.cfg.MediaVolume, rel)); err != nil {
		return "", &ProviderError{Provider: s.Name(), Retriable: true, Err: err}
	}
	return rel, nil
}

// ffmpegVideo is the local provider at the end of the video chain: a
// Ken-Burns style render from the still image, no AI backend involved.
type ffmpegVideo struct{ mediaVolume string }

func (f *ffmpegVideo) Name() string { return "ffmpeg" }

func (f *ffmpegVideo) Generate(ctx context.Context, req GenRequest) (string, error) {
	rel := filepath.Join(req.ProjectID, "videos", req.SceneID+".mp4")
	out := filepath.Join(f.mediaVolume, rel)
	if err := RenderStillVideo(ctx, filepath.Join(f.mediaVolume, req.ImagePath),
		audioAbs(f.mediaVolume, req.AudioPath), out); err != nil {
		return "", &ProviderError{Provider: f.Name(), Err: err}
	}
	return rel, nil
}

// Fallback for the whole video chain is the same local render. Exposed
// on the router so GenService sees it after the chain is exhausted.
func (r *Router) Fallback(ctx context.Context, req GenRequest) (string, error) {
	if r.kind != "video" {
		return "", ErrFallbackNotImplemented
	}
	for _, p := range r.providers {
		if f, ok := p.(*ffmpegVideo); ok {
			return f.Generate(ctx, req)
		}
	}
	return "", ErrFallbackNotImplemented
}

type indexTTS struct{ cfg *config.Config }

func (t *indexTTS) Name() string { return "indextts" }

func (t *indexTTS) Generate(ctx context.Context, req GenRequest) (string, error) {
	payload := map[string]interface{}{
		"text":  req.Prompt,
		"voice": t.cfg.ProviderAPI.IndexTTSVoice,
	}
	resp, err := postJSON(ctx, t.Name(), t.cfg.ProviderAPI.IndexTTSEndpoint+"/tts", "", payload)
	if err != nil {
		return "", err
	}
	url := firstString(resp, "audio_url", "url")
	if url == "" {
		return "", &ProviderError{Provider: t.Name(), Err: fmt.Errorf("response missing audio url")}
	}
	rel := filepath.Join(req.ProjectID, "audio", req.SceneID+".wav")
	if err := downloadTo(ctx, url, filepath.Join(t.cfg.MediaVolume, rel)); err != nil {
		return "", &ProviderError{Provider: t.Name(), Retriable: true, Err: err}
	}
	return rel, nil
}

// mockProvider writes a placeholder artifact so the full pipeline can
// be exercised without any external backend.
type mockProvider struct {
	kind        string // "image" | "video" | "audio"
	mediaVolume string
}

func (m *mockProvider) Name() string { return "mock_" + m.kind }

func (m *mockProvider) Generate(_ context.Context, req GenRequest) (string, error) {
	ext := map[string]string{"image": ".png", "video": ".mp4", "audio": ".wav"}[m.kind]
	dir := m.kind + "s"
	if m.kind == "audio" {
		dir = "audio"
	}
	rel := filepath.Join(req.ProjectID, dir, req.SceneID+ext)
	abs := filepath.Join(m.mediaVolume, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	content := fmt.Sprintf("MOCK %s | scene=%s | prompt=%.80s", m.kind, req.SceneID, req.Prompt)
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

var providerRetriable = map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}

func postJSON(ctx context.Context, provider, endpoint, apiKey string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Retriable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Retriable:  providerRetriable[resp.StatusCode],
			Err:        fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: provider, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

func downloadTo(ctx context.Context, url, absPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", resp.StatusCode)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(absPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func fileBase64(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func audioAbs(mediaVolume, rel string) string {
	if rel == "" {
		return ""
	}
	return filepath.Join(mediaVolume, rel)
}
