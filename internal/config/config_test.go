package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Server.Listen", cfg.Server.Listen, ":3002"},
		{"Server.StreamPath", cfg.Server.StreamPath, "/api/tts/stream"},
		{"Synthesis.APIURL", cfg.Synthesis.APIURL, "wss://api.minimaxi.com/ws/v1/t2a_v2"},
		{"Synthesis.Model", cfg.Synthesis.Model, "speech-02-turbo"},
		{"Synthesis.DefaultVoice", cfg.Synthesis.DefaultVoice, "male-qn-jingying-jingpin"},
		{"Synthesis.Speed", cfg.Synthesis.Speed, 1.0},
		{"Synthesis.IdleTimeout", cfg.Synthesis.IdleTimeout, 60},
		{"Log.Level", cfg.Log.Level, "info"},
	}

	for _, c := range checks {
		switch want := c.want.(type) {
		case int:
			if c.got.(int) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		case float64:
			if c.got.(float64) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		case string:
			if c.got.(string) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		}
	}
}

func TestSetDefaults_DoesNotOverride(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Listen: ":8080", StreamPath: "/ws/tts"},
		Synthesis: SynthesisConfig{
			APIURL:       "wss://example.com/tts",
			Model:        "speech-01",
			DefaultVoice: "custom-voice",
			Speed:        1.5,
			IdleTimeout:  -1,
		},
		Log: LogConfig{Level: "debug"},
	}
	setDefaults(cfg)

	if cfg.Server.Listen != ":8080" {
		t.Errorf("Server.Listen should not be overridden: got %s", cfg.Server.Listen)
	}
	if cfg.Server.StreamPath != "/ws/tts" {
		t.Errorf("Server.StreamPath should not be overridden: got %s", cfg.Server.StreamPath)
	}
	if cfg.Synthesis.APIURL != "wss://example.com/tts" {
		t.Errorf("Synthesis.APIURL should not be overridden: got %s", cfg.Synthesis.APIURL)
	}
	if cfg.Synthesis.Model != "speech-01" {
		t.Errorf("Synthesis.Model should not be overridden: got %s", cfg.Synthesis.Model)
	}
	if cfg.Synthesis.DefaultVoice != "custom-voice" {
		t.Errorf("Synthesis.DefaultVoice should not be overridden: got %s", cfg.Synthesis.DefaultVoice)
	}
	if cfg.Synthesis.Speed != 1.5 {
		t.Errorf("Synthesis.Speed should not be overridden: got %f", cfg.Synthesis.Speed)
	}
	if cfg.Synthesis.IdleTimeout != -1 {
		t.Errorf("Synthesis.IdleTimeout should not be overridden: got %d", cfg.Synthesis.IdleTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level should not be overridden: got %s", cfg.Log.Level)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	yamlContent := `
server:
  listen: ":4000"
  stream_path: /tts/stream
database:
  path: /tmp/relay.db
synthesis:
  api_url: wss://example.com/tts
  api_key: test-key
  model: speech-01
  default_voice: female-yujie
  speed: 0.8
  idle_timeout: 30
log:
  level: debug
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Listen != ":4000" {
		t.Errorf("Server.Listen: got %q, want %q", cfg.Server.Listen, ":4000")
	}
	if cfg.Database.Path != "/tmp/relay.db" {
		t.Errorf("Database.Path: got %q, want %q", cfg.Database.Path, "/tmp/relay.db")
	}
	if cfg.Synthesis.APIKey != "test-key" {
		t.Errorf("Synthesis.APIKey: got %q, want %q", cfg.Synthesis.APIKey, "test-key")
	}
	if cfg.Synthesis.Speed != 0.8 {
		t.Errorf("Synthesis.Speed: got %f, want 0.8", cfg.Synthesis.Speed)
	}
	if cfg.Synthesis.IdleTimeout != 30 {
		t.Errorf("Synthesis.IdleTimeout: got %d, want 30", cfg.Synthesis.IdleTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want %q", cfg.Log.Level, "debug")
	}
	// Defaults should be applied for unset fields
	if cfg.Server.StreamPath != "/tts/stream" {
		t.Errorf("Server.StreamPath: got %q, want %q", cfg.Server.StreamPath, "/tts/stream")
	}
	if cfg.Synthesis.Model != "speech-01" {
		t.Errorf("Synthesis.Model: got %q, want %q", cfg.Synthesis.Model, "speech-01")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_TTS_API_KEY", "secret-from-env")

	yamlContent := `
synthesis:
  api_key: "${TEST_TTS_API_KEY}"
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Synthesis.APIKey != "secret-from-env" {
		t.Errorf("expected env var expansion, got %q", cfg.Synthesis.APIKey)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestSetDefaults_TrimsAPIKey(t *testing.T) {
	cfg := &Config{
		Synthesis: SynthesisConfig{APIKey: "  key-with-spaces  "},
	}
	setDefaults(cfg)
	if cfg.Synthesis.APIKey != "key-with-spaces" {
		t.Errorf("expected trimmed API key, got %q", cfg.Synthesis.APIKey)
	}
}
