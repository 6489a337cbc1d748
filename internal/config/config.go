// Package config loads taskpad's server configuration.
//
// A config file is optional. When present it may be YAML (.yaml/.yml) or
// TOML (.toml); fields are snake_case in both. Environment variables are
// applied on top of the file, and API keys are only ever read from the
// environment (the file names the variable, never the secret).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Provider types understood by the provider registry.
const (
	ProviderTypeOpenAI           = "openai"
	ProviderTypeOpenAICompatible = "openai_compatible"
	ProviderTypeAnthropic        = "anthropic"
)

const (
	defaultLogLevel            = "info"
	defaultUser                = "local"
	defaultProviderID          = "openai"
	defaultSoftDeadlineSeconds = 25
	defaultProviderTimeoutSec  = 300
	defaultScratchpadIDTries   = 1000
	defaultHTTPAddr            = "127.0.0.1:8931"
	dbFileName                 = "taskpad.db"
)

// Config is the root configuration for the server.
type Config struct {
	DataDir             string           `yaml:"data_dir" toml:"data_dir"`
	LogLevel            string           `yaml:"log_level" toml:"log_level"`
	HTTPAddr            string           `yaml:"http_addr" toml:"http_addr"`
	DefaultUser         string           `yaml:"default_user" toml:"default_user"`
	DefaultProvider     string           `yaml:"default_provider" toml:"default_provider"`
	SoftDeadlineSeconds int              `yaml:"soft_deadline_seconds" toml:"soft_deadline_seconds"`
	Providers           []Provider       `yaml:"providers" toml:"providers"`
	MCPServers          []MCPServer      `yaml:"mcp_servers" toml:"mcp_servers"`
	Scratchpad          ScratchpadConfig `yaml:"scratchpad" toml:"scratchpad"`
}

// Provider configures one inference backend.
type Provider struct {
	// ID is the name callers use to select the provider (e.g. "openai").
	ID string `yaml:"id" toml:"id"`

	// Type is one of: "openai" | "openai_compatible" | "anthropic".
	Type string `yaml:"type" toml:"type"`

	// BaseURL overrides the provider endpoint. Required for openai_compatible.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// Model is the default model used when a run does not name one.
	Model string `yaml:"model" toml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// Defaults to OPENAI_API_KEY / ANTHROPIC_API_KEY by type.
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`

	// TimeoutSeconds is the hard timeout for one inference call.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// MCPServer is a remote MCP server a run may ask the provider to attach.
type MCPServer struct {
	Name         string `yaml:"name" toml:"name"`
	URL          string `yaml:"url" toml:"url"`
	AuthTokenEnv string `yaml:"auth_token_env" toml:"auth_token_env"`
}

// ScratchpadConfig tunes scratchpad id generation.
type ScratchpadConfig struct {
	IDAttempts int `yaml:"id_attempts" toml:"id_attempts"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.fillDefaults()
	return cfg
}

func defaultProviders() []Provider {
	return []Provider{
		{ID: defaultProviderID, Type: ProviderTypeOpenAI, Model: "gpt-4.1-mini", TimeoutSeconds: defaultProviderTimeoutSec},
		{ID: "anthropic", Type: ProviderTypeAnthropic, Model: "claude-sonnet-4-5", TimeoutSeconds: defaultProviderTimeoutSec},
	}
}

// Load reads the config file at path (if non-empty), fills defaults,
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.fillDefaults()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

func (c *Config) fillDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, ".taskpad")
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(c.DefaultUser) == "" {
		c.DefaultUser = defaultUser
	}
	if c.SoftDeadlineSeconds == 0 {
		c.SoftDeadlineSeconds = defaultSoftDeadlineSeconds
	}
	if c.Scratchpad.IDAttempts == 0 {
		c.Scratchpad.IDAttempts = defaultScratchpadIDTries
	}
	if len(c.Providers) == 0 {
		c.Providers = defaultProviders()
	}
	for i := range c.Providers {
		if c.Providers[i].TimeoutSeconds == 0 {
			c.Providers[i].TimeoutSeconds = defaultProviderTimeoutSec
		}
	}
	if strings.TrimSpace(c.DefaultProvider) == "" && len(c.Providers) > 0 {
		c.DefaultProvider = c.Providers[0].ID
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("TASKPAD_DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(getenv("TASKPAD_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("TASKPAD_DEFAULT_PROVIDER")); v != "" {
		c.DefaultProvider = v
	}
	if v := strings.TrimSpace(getenv("TASKPAD_SOFT_DEADLINE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: TASKPAD_SOFT_DEADLINE: %w", err)
		}
		c.SoftDeadlineSeconds = n
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("missing data_dir")
	}
	if c.SoftDeadlineSeconds <= 0 {
		return fmt.Errorf("invalid soft_deadline_seconds %d (must be > 0)", c.SoftDeadlineSeconds)
	}
	if c.Scratchpad.IDAttempts <= 0 {
		return fmt.Errorf("invalid scratchpad.id_attempts %d (must be > 0)", c.Scratchpad.IDAttempts)
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("providers[%d]: missing id", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("providers[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}

		switch strings.TrimSpace(p.Type) {
		case ProviderTypeOpenAI, ProviderTypeOpenAICompatible, ProviderTypeAnthropic:
		default:
			return fmt.Errorf("providers[%d]: invalid type %q", i, p.Type)
		}
		if p.Type == ProviderTypeOpenAICompatible && strings.TrimSpace(p.BaseURL) == "" {
			return fmt.Errorf("providers[%d]: base_url is required for openai_compatible", i)
		}
		if err := validateURL(p.BaseURL); err != nil {
			return fmt.Errorf("providers[%d]: invalid base_url: %w", i, err)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("providers[%d]: missing model", i)
		}
		if p.TimeoutSeconds <= 0 {
			return fmt.Errorf("providers[%d]: invalid timeout_seconds %d", i, p.TimeoutSeconds)
		}
		// The soft deadline only makes sense if the hard timeout can outlast it.
		if p.TimeoutSeconds <= c.SoftDeadlineSeconds {
			return fmt.Errorf("providers[%d]: timeout_seconds %d must exceed soft_deadline_seconds %d",
				i, p.TimeoutSeconds, c.SoftDeadlineSeconds)
		}
	}
	if d := strings.TrimSpace(c.DefaultProvider); d != "" {
		if _, ok := seen[d]; !ok {
			return fmt.Errorf("default_provider %q is not configured", d)
		}
	}

	names := make(map[string]struct{}, len(c.MCPServers))
	for i, s := range c.MCPServers {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("mcp_servers[%d]: missing name", i)
		}
		if _, ok := names[name]; ok {
			return fmt.Errorf("mcp_servers[%d]: duplicate name %q", i, name)
		}
		names[name] = struct{}{}
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("mcp_servers[%d]: missing url", i)
		}
		if err := validateURL(s.URL); err != nil {
			return fmt.Errorf("mcp_servers[%d]: invalid url: %w", i, err)
		}
	}
	return nil
}

func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// DBPath returns the SQLite database file location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFileName)
}

// UploadsDir returns the directory attachments are resolved from.
func (c Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// SoftDeadline is how long a run request waits before answering in_progress.
func (c Config) SoftDeadline() time.Duration {
	return time.Duration(c.SoftDeadlineSeconds) * time.Second
}

// FindProvider looks up a provider by id.
func (c Config) FindProvider(id string) (Provider, bool) {
	id = strings.TrimSpace(id)
	for _, p := range c.Providers {
		if strings.TrimSpace(p.ID) == id {
			return p, true
		}
	}
	return Provider{}, false
}

// FindMCPServer looks up a remote MCP server by name.
func (c Config) FindMCPServer(name string) (MCPServer, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.MCPServers {
		if strings.TrimSpace(s.Name) == name {
			return s, true
		}
	}
	return MCPServer{}, false
}

// Timeout is the provider's hard timeout.
func (p Provider) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return defaultProviderTimeoutSec * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// KeyEnv returns the environment variable the provider's key is read from.
func (p Provider) KeyEnv() string {
	if v := strings.TrimSpace(p.APIKeyEnv); v != "" {
		return v
	}
	switch p.Type {
	case ProviderTypeAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
