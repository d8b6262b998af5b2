package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_DefaultsWhenEmpty(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Supervisor.TickInterval != 20*time.Second {
		t.Errorf("expected default tick 20s, got %v", cfg.Supervisor.TickInterval)
	}
	if cfg.Instruct.Model != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %q", cfg.Instruct.Model)
	}
	if !cfg.Janitor.Enabled {
		t.Error("expected maintenance enabled by default")
	}
}

func TestParse_OverlaysValues(t *testing.T) {
	t.Parallel()
	yamlData := `
supervisor:
  tick_interval: 5s
  cooldown: 2s
capture:
  mode: file
  text_file: /tmp/out.txt
notify:
  enabled: true
  channel_id: "42"
`
	cfg, err := Parse([]byte(yamlData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Supervisor.TickInterval != 5*time.Second {
		t.Errorf("expected tick 5s, got %v", cfg.Supervisor.TickInterval)
	}
	if cfg.Capture.Mode != "file" {
		t.Errorf("expected capture mode file, got %q", cfg.Capture.Mode)
	}
	if !cfg.Notify.Enabled || cfg.Notify.ChannelID != "42" {
		t.Errorf("expected notify overlay, got %+v", cfg.Notify)
	}
	// Untouched sections keep defaults.
	if cfg.Instruct.Timeout != 60*time.Second {
		t.Errorf("expected default instruct timeout, got %v", cfg.Instruct.Timeout)
	}
}

func TestParse_InvalidYAMLFails(t *testing.T) {
	t.Parallel()
	if _, err := Parse([]byte("supervisor: [not a map")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("STEWARD_TEST_MODEL", "gpt-4o-mini")

	path := filepath.Join(t.TempDir(), "steward.yaml")
	yamlData := "instruct:\n  model: ${STEWARD_TEST_MODEL}\n"
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Instruct.Model != "gpt-4o-mini" {
		t.Errorf("expected env-expanded model, got %q", cfg.Instruct.Model)
	}
}

func TestLoadFromFile_UnsetVarKeptAsPlaceholder(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "steward.yaml")
	yamlData := "instruct:\n  system_prompt: ${STEWARD_DEFINITELY_UNSET_VAR}\n"
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Instruct.SystemPrompt != "${STEWARD_DEFINITELY_UNSET_VAR}" {
		t.Errorf("expected placeholder to survive, got %q", cfg.Instruct.SystemPrompt)
	}
}

func TestLoadFromFile_ResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("STEWARD_API_KEY", "sk-from-env")
	t.Setenv("OPENAI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "steward.yaml")
	if err := os.WriteFile(path, []byte("instruct: {}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Instruct.APIKey != "sk-from-env" {
		t.Errorf("expected API key from env, got %q", cfg.Instruct.APIKey)
	}
}

func TestLoadFromFile_MissingFileFails(t *testing.T) {
	t.Parallel()
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveToFile_RoundTripsAndRestrictsPermissions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "steward.yaml")
	cfg := DefaultConfig()
	cfg.Supervisor.TickInterval = 7 * time.Second

	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %04o", perm)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Supervisor.TickInterval != 7*time.Second {
		t.Errorf("expected tick to round-trip, got %v", loaded.Supervisor.TickInterval)
	}
}

func TestSanitizeSecret(t *testing.T) {
	t.Setenv("STEWARD_API_KEY", "sk-real-value")

	if got := sanitizeSecret("sk-real-value", "STEWARD_API_KEY"); got != "${STEWARD_API_KEY}" {
		t.Errorf("expected env reference, got %q", got)
	}
	if got := sanitizeSecret("${ALREADY_REF}", "STEWARD_API_KEY"); got != "${ALREADY_REF}" {
		t.Errorf("expected reference to pass through, got %q", got)
	}
	if got := sanitizeSecret("sk-other", "STEWARD_API_KEY"); got != "sk-other" {
		t.Errorf("expected unmatched secret kept as-is, got %q", got)
	}
}
