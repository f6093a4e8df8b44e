package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDir(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", original)

	dir := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", dir)

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := filepath.Join(dir, "agentkernel")
	if configDir != expected {
		t.Errorf("expected %s, got %s", expected, configDir)
	}
}

func TestConfigDirDefault(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	os.Unsetenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", original)

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "agentkernel")
	if configDir != expected {
		t.Errorf("expected %s, got %s", expected, configDir)
	}
}

func TestProviderDefaultsAnthropic(t *testing.T) {
	baseURL, maxTokens, window := ProviderDefaults("anthropic", "claude-sonnet-4-5-20250929")
	if baseURL != "https://api.anthropic.com/v1" {
		t.Errorf("unexpected base URL: %s", baseURL)
	}
	if maxTokens != 16384 || window != 200000 {
		t.Errorf("unexpected anthropic defaults: maxTokens=%d window=%d", maxTokens, window)
	}
}

func TestProviderDefaultsOpenAIContextWindowByModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"gpt-5.1-codex-mini", 400000},
		{"o3-mini", 200000},
		{"gpt-3.5-turbo", 16000},
		{"gpt-4o-mini", 128000},
	}
	for _, tt := range tests {
		_, _, window := ProviderDefaults("openai", tt.model)
		if window != tt.want {
			t.Errorf("model %s: expected window %d, got %d", tt.model, tt.want, window)
		}
	}
}

func TestKnownModelsNonEmpty(t *testing.T) {
	models := KnownModels()
	if len(models) == 0 {
		t.Fatal("expected at least one known model")
	}
}
