package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds everything read from config/config.yaml at startup.
// It is loaded once by the composition root and passed down explicitly;
// nothing in this package mutates it after Load.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	LLM struct {
		BaseURL    string `yaml:"base_url"`
		APIKeys    string `yaml:"api_keys"` // comma-separated key pool
		StoryModel string `yaml:"story_model"`
		TimeoutSec int    `yaml:"timeout_sec"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"llm"`
	Providers struct {
		// Ordered provider chains, first entry tried first.
		Image []string `yaml:"image"`
		Video []string `yaml:"video"`
		TTS   []string `yaml:"tts"`
	} `yaml:"providers"`
	ProviderAPI struct {
		FluxEndpoint     string `yaml:"flux_endpoint"`
		FluxAPIKey       string `yaml:"flux_api_key"`
		SeedanceEndpoint string `yaml:"seedance_endpoint"`
		SeedanceAPIKey   string `yaml:"seedance_api_key"`
		IndexTTSEndpoint string `yaml:"indextts_endpoint"`
		IndexTTSVoice    string `yaml:"indextts_voice"`
	} `yaml:"provider_api"`
	MediaVolume string     `yaml:"media_volume"`
	UseMockAPI  bool       `yaml:"use_mock_api"`
	Generation  Generation `yaml:"generation"`
}

// Generation holds the tunable generation knobs. These are the fields
// exposed for live mutation through the SettingsStore.
type Generation struct {
	MaxRetries      int     `yaml:"max_retries" json:"max_retries"`
	RetryDelaySec   int     `yaml:"retry_delay_sec" json:"retry_delay_sec"`
	TimeoutSec      int     `yaml:"timeout_sec" json:"timeout_sec"`
	FallbackEnabled bool    `yaml:"fallback_enabled" json:"fallback_enabled"`
	ImageCost       float64 `yaml:"image_cost" json:"image_cost"`
	VideoCost       float64 `yaml:"video_cost" json:"video_cost"`
	TTSCost         float64 `yaml:"tts_cost" json:"tts_cost"`
	VideoLockTTLSec int     `yaml:"video_lock_ttl_sec" json:"video_lock_ttl_sec"`
}

func (g Generation) RetryDelay() time.Duration { return time.Duration(g.RetryDelaySec) * time.Second }
func (g Generation) Timeout() time.Duration    { return time.Duration(g.TimeoutSec) * time.Second }
func (g Generation) VideoLockTTL() time.Duration {
	return time.Duration(g.VideoLockTTLSec) * time.Second
}

// Load reads and parses the yaml config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.MediaVolume == "" {
		c.MediaVolume = "media_volume"
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 120
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 5
	}
	if len(c.Providers.Image) == 0 {
		c.Providers.Image = []string{"flux", "openrouter"}
	}
	if len(c.Providers.Video) == 0 {
		c.Providers.Video = []string{"seedance", "ffmpeg"}
	}
	if len(c.Providers.TTS) == 0 {
		c.Providers.TTS = []string{"indextts"}
	}
	g := &c.Generation
	if g.MaxRetries == 0 {
		g.MaxRetries = 2
	}
	if g.RetryDelaySec == 0 {
		g.RetryDelaySec = 2
	}
	if g.TimeoutSec == 0 {
		g.TimeoutSec = 180
	}
	if g.VideoLockTTLSec == 0 {
		g.VideoLockTTLSec = 600
	}
}

// LLMKeys splits the configured comma-separated key pool.
func (c *Config) LLMKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.LLM.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
