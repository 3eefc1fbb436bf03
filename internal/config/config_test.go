package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{"gemini": {"api_key": "file-key"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":8090" {
		t.Errorf("server address = %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Models.Video != DefaultVideoModel || cfg.Models.Speech != DefaultSpeechModel {
		t.Errorf("model defaults not applied: %+v", cfg.Models)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("poll interval = %v, want 5s", cfg.PollInterval())
	}
	if cfg.PollTimeout() != 10*time.Minute {
		t.Errorf("poll timeout = %v, want 10m", cfg.PollTimeout())
	}
	if cfg.Video.StatusRetries != 0 {
		t.Errorf("status retries = %d, want 0", cfg.Video.StatusRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000"},
		"gemini": {"api_key": "file-key"},
		"video": {"poll_interval": 2, "poll_timeout": 3, "status_retries": 2}
	}`)
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("OMNIGEN_VIDEO_MODEL", "veo-custom")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.Gemini.APIKey)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Errorf("file value lost: %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Models.Video != "veo-custom" {
		t.Errorf("video model = %q", cfg.Models.Video)
	}
	if cfg.PollInterval() != 2*time.Second || cfg.PollTimeout() != 3*time.Minute || cfg.Video.StatusRetries != 2 {
		t.Errorf("video config not loaded: %+v", cfg.Video)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}

	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load default path error: %v", err)
	}
	if cfg.Models.Text != DefaultTextModel {
		t.Errorf("text model = %q", cfg.Models.Text)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing api key error")
	}
	cfg.Gemini.APIKey = "k"
	cfg.BasicConfig.ChatProvider = "openai"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unconfigured provider error")
	}
	cfg.Providers = map[string]ProviderConfig{"openai": {Model: "gpt"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}
