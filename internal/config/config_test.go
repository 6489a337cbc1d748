package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// --- Default ---

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.SoftDeadline() != 25*time.Second {
		t.Errorf("SoftDeadline = %s, want 25s", cfg.SoftDeadline())
	}
	if cfg.Scratchpad.IDAttempts != 1000 {
		t.Errorf("IDAttempts = %d, want 1000", cfg.Scratchpad.IDAttempts)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q, want openai", cfg.DefaultProvider)
	}
}

func TestDBPath(t *testing.T) {
	cfg := Config{DataDir: "/var/lib/taskpad"}
	want := filepath.Join("/var/lib/taskpad", "taskpad.db")
	if got := cfg.DBPath(); got != want {
		t.Errorf("DBPath = %s, want %s", got, want)
	}
}

// --- Load ---

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, "taskpad.yaml", `
data_dir: `+dir+`
soft_deadline_seconds: 10
default_provider: claude
providers:
  - id: claude
    type: anthropic
    model: claude-sonnet-4-5
    timeout_seconds: 60
mcp_servers:
  - name: docs
    url: https://mcp.example.com/sse
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %s, want %s", cfg.DataDir, dir)
	}
	if cfg.SoftDeadline() != 10*time.Second {
		t.Errorf("SoftDeadline = %s, want 10s", cfg.SoftDeadline())
	}
	p, ok := cfg.FindProvider("claude")
	if !ok {
		t.Fatal("provider claude not found")
	}
	if p.KeyEnv() != "ANTHROPIC_API_KEY" {
		t.Errorf("KeyEnv = %s, want ANTHROPIC_API_KEY", p.KeyEnv())
	}
	if p.Timeout() != time.Minute {
		t.Errorf("Timeout = %s, want 1m", p.Timeout())
	}
	if _, ok := cfg.FindMCPServer("docs"); !ok {
		t.Error("mcp server docs not found")
	}
	if cfg.Scratchpad.IDAttempts != 1000 {
		t.Errorf("IDAttempts default not applied: %d", cfg.Scratchpad.IDAttempts)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "taskpad.toml", `
data_dir = "/tmp/taskpad-toml"
log_level = "debug"

[[providers]]
id = "gw"
type = "openai_compatible"
base_url = "https://gateway.example.com/v1"
model = "llama-3"
api_key_env = "GATEWAY_KEY"

[scratchpad]
id_attempts = 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.DefaultProvider != "gw" {
		t.Errorf("DefaultProvider = %q, want gw (first provider)", cfg.DefaultProvider)
	}
	p, _ := cfg.FindProvider("gw")
	if p.KeyEnv() != "GATEWAY_KEY" {
		t.Errorf("KeyEnv = %s, want GATEWAY_KEY", p.KeyEnv())
	}
	if p.TimeoutSeconds != 300 {
		t.Errorf("TimeoutSeconds = %d, want default 300", p.TimeoutSeconds)
	}
	if cfg.Scratchpad.IDAttempts != 5 {
		t.Errorf("IDAttempts = %d, want 5", cfg.Scratchpad.IDAttempts)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "taskpad.ini", "x=1")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"TASKPAD_DATA_DIR":         "/data",
		"TASKPAD_LOG_LEVEL":        "warn",
		"TASKPAD_DEFAULT_PROVIDER": "anthropic",
		"TASKPAD_SOFT_DEADLINE":    "5",
	}
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.DataDir != "/data" || cfg.LogLevel != "warn" || cfg.DefaultProvider != "anthropic" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.SoftDeadlineSeconds != 5 {
		t.Errorf("SoftDeadlineSeconds = %d, want 5", cfg.SoftDeadlineSeconds)
	}
}

func TestApplyEnv_BadSoftDeadline(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == "TASKPAD_SOFT_DEADLINE" {
			return "soon"
		}
		return ""
	})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

// --- Validate ---

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"soft deadline not below timeout", func(c *Config) { c.SoftDeadlineSeconds = 300 }, "must exceed soft_deadline_seconds"},
		{"zero soft deadline", func(c *Config) { c.SoftDeadlineSeconds = 0 }, "soft_deadline_seconds"},
		{"duplicate provider", func(c *Config) { c.Providers = append(c.Providers, c.Providers[0]) }, "duplicate id"},
		{"bad type", func(c *Config) { c.Providers[0].Type = "gemini" }, "invalid type"},
		{"compatible without url", func(c *Config) { c.Providers[0].Type = ProviderTypeOpenAICompatible }, "base_url is required"},
		{"bad base url", func(c *Config) { c.Providers[0].BaseURL = "ftp://x" }, "invalid base_url"},
		{"missing model", func(c *Config) { c.Providers[0].Model = "" }, "missing model"},
		{"unknown default", func(c *Config) { c.DefaultProvider = "nope" }, "not configured"},
		{"mcp without url", func(c *Config) { c.MCPServers = []MCPServer{{Name: "a"}} }, "missing url"},
		{"duplicate mcp", func(c *Config) {
			c.MCPServers = []MCPServer{{Name: "a", URL: "https://a.io"}, {Name: "a", URL: "https://b.io"}}
		}, "duplicate name"},
		{"zero id attempts", func(c *Config) { c.Scratchpad.IDAttempts = -1 }, "id_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
