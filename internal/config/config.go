package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents runtime configuration for the studio.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Gemini      GeminiConfig              `json:"gemini"`
	Models      ModelConfig               `json:"models"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Video       VideoConfig               `json:"video"`
	Credentials CredentialConfig          `json:"credentials"`
	Redis       RedisConfig               `json:"redis"`
}

// ProviderConfig configures an alternative chat provider (openai, claude).
type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address" env:"OMNIGEN_ADDR"`
	Debug             bool   `json:"debug" env:"OMNIGEN_DEBUG"`
	ChatProvider      string `json:"chat_provider" env:"OMNIGEN_CHAT_PROVIDER"`
	SessionTTL        int    `json:"session_ttl"` // minutes
	MaxUploadBytes    int64  `json:"max_upload_bytes"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
	ResultTTL         int    `json:"result_ttl"`          // minutes
	CleanInterval     int    `json:"clean_interval"`      // minutes
}

// GeminiConfig holds the credential for the hosted generation API.
type GeminiConfig struct {
	APIKey  string `json:"api_key" env:"GEMINI_API_KEY"`
	BaseURL string `json:"base_url" env:"GEMINI_BASE_URL"`
}

type ModelConfig struct {
	Text   string `json:"text" env:"OMNIGEN_TEXT_MODEL"`
	Image  string `json:"image" env:"OMNIGEN_IMAGE_MODEL"`
	Video  string `json:"video" env:"OMNIGEN_VIDEO_MODEL"`
	Speech string `json:"speech" env:"OMNIGEN_SPEECH_MODEL"`
}

type VideoConfig struct {
	PollInterval  int `json:"poll_interval"` // seconds
	PollTimeout   int `json:"poll_timeout"`  // minutes, 0 disables the bound
	StatusRetries int `json:"status_retries"`
}

type CredentialConfig struct {
	// ConfirmSelection re-checks the selector after the selection flow
	// instead of assuming it succeeded.
	ConfirmSelection bool   `json:"confirm_selection"`
	EncryptionKey    string `json:"encryption_key" env:"OMNIGEN_KEYSTORE_SECRET"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" env:"OMNIGEN_REDIS_ENABLED"`
	Host     string `json:"host" env:"OMNIGEN_REDIS_HOST"`
	Port     int    `json:"port" env:"OMNIGEN_REDIS_PORT"`
	Username string `json:"username" env:"OMNIGEN_REDIS_USERNAME"`
	Password string `json:"password" env:"OMNIGEN_REDIS_PASSWORD"`
	DB       int    `json:"db" env:"OMNIGEN_REDIS_DB"`
}

const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultVideoModel  = "veo-3.1-fast-generate-preview"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
)

// Load reads configuration from the provided path (defaults to config.json),
// then applies environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.ChatProvider == "" {
		c.BasicConfig.ChatProvider = "gemini"
	}
	if c.BasicConfig.SessionTTL <= 0 {
		c.BasicConfig.SessionTTL = 24 * 60
	}
	if c.BasicConfig.MaxUploadBytes <= 0 {
		c.BasicConfig.MaxUploadBytes = 10 << 20
	}
	if c.BasicConfig.MinWorkers <= 0 {
		c.BasicConfig.MinWorkers = 1
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		c.BasicConfig.MaxWorkers = c.BasicConfig.MinWorkers * 4
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = 64
	}
	if c.BasicConfig.ResultTTL <= 0 {
		c.BasicConfig.ResultTTL = 60
	}
	if c.BasicConfig.CleanInterval <= 0 {
		c.BasicConfig.CleanInterval = 5
	}
	if c.Models.Text == "" {
		c.Models.Text = DefaultTextModel
	}
	if c.Models.Image == "" {
		c.Models.Image = DefaultImageModel
	}
	if c.Models.Video == "" {
		c.Models.Video = DefaultVideoModel
	}
	if c.Models.Speech == "" {
		c.Models.Speech = DefaultSpeechModel
	}
	if c.Video.PollInterval <= 0 {
		c.Video.PollInterval = 5
	}
	if c.Video.PollTimeout < 0 {
		c.Video.PollTimeout = 0
	} else if c.Video.PollTimeout == 0 {
		c.Video.PollTimeout = 10
	}
	if c.Video.StatusRetries < 0 {
		c.Video.StatusRetries = 0
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "127.0.0.1"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
}

// Validate reports configuration that makes generation impossible.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return errors.New("gemini api_key must be configured (or set GEMINI_API_KEY)")
	}
	if c.BasicConfig.ChatProvider != "gemini" {
		if _, ok := c.Providers[c.BasicConfig.ChatProvider]; !ok {
			return fmt.Errorf("chat provider %s not configured", c.BasicConfig.ChatProvider)
		}
	}
	return nil
}

// PollInterval is the fixed delay between video status checks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Video.PollInterval) * time.Second
}

// PollTimeout bounds a whole video job; zero means unbounded.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Video.PollTimeout) * time.Minute
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.BasicConfig.SessionTTL) * time.Minute
}

func (c *Config) ResultTTL() time.Duration {
	return time.Duration(c.BasicConfig.ResultTTL) * time.Minute
}

func (c *Config) CleanInterval() time.Duration {
	return time.Duration(c.BasicConfig.CleanInterval) * time.Minute
}

func (c *Config) WorkerIdleTimeout() time.Duration {
	return time.Duration(c.BasicConfig.WorkerIdleTimeout) * time.Minute
}
