package providers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/HendryAvila/taskpad/internal/config"
)

var (
	ErrMissingAPIKey       = errors.New("missing_api_key")
	ErrProviderUnavailable = errors.New("provider_unavailable")
)

// UnavailableError names the provider that could not be resolved.
// It matches ErrProviderUnavailable with errors.Is.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string { return "provider_unavailable:" + e.Name }

func (e *UnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }

// Factory builds a provider from its config and resolved API key.
type Factory func(cfg config.Provider, apiKey string) (Provider, error)

// Registry resolves provider names from config at call time. Keys are read
// from the environment on every Resolve so rotating a key needs no restart.
type Registry struct {
	order     []string
	providers map[string]config.Provider
	factories map[string]Factory
	getenv    func(string) string
	defaultID string
}

func NewRegistry(cfg config.Config, getenv func(string) string) *Registry {
	if getenv == nil {
		getenv = os.Getenv
	}
	r := &Registry{
		providers: make(map[string]config.Provider, len(cfg.Providers)),
		factories: map[string]Factory{
			config.ProviderTypeOpenAI:           newOpenAIFactory(config.ProviderTypeOpenAI),
			config.ProviderTypeOpenAICompatible: newOpenAIFactory(config.ProviderTypeOpenAICompatible),
			config.ProviderTypeAnthropic:        newAnthropic,
		},
		getenv:    getenv,
		defaultID: strings.TrimSpace(cfg.DefaultProvider),
	}
	for _, p := range cfg.Providers {
		id := strings.TrimSpace(p.ID)
		r.order = append(r.order, id)
		r.providers[id] = p
	}
	return r
}

// RegisterFactory overrides how providers of the given type are built.
func (r *Registry) RegisterFactory(providerType string, f Factory) {
	r.factories[providerType] = f
}

// Default returns the configured default provider id.
func (r *Registry) Default() string { return r.defaultID }

// Lookup returns the config of a provider id.
func (r *Registry) Lookup(name string) (config.Provider, bool) {
	p, ok := r.providers[strings.TrimSpace(name)]
	return p, ok
}

// Resolve builds the named provider. An empty name selects the default.
func (r *Registry) Resolve(name string) (Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = r.defaultID
	}
	cfg, ok := r.providers[name]
	if !ok {
		return nil, &UnavailableError{Name: name}
	}
	factory, ok := r.factories[strings.TrimSpace(cfg.Type)]
	if !ok {
		return nil, &UnavailableError{Name: name}
	}
	key := strings.TrimSpace(r.getenv(cfg.KeyEnv()))
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	p, err := factory(cfg, key)
	if err != nil {
		return nil, fmt.Errorf("providers: build %s: %w", name, err)
	}
	return p, nil
}

// typeCapabilities is what each built-in adapter type supports.
var typeCapabilities = map[string]CapabilitySet{
	config.ProviderTypeOpenAI:           NewCapabilitySet(Grounding, CodeExecution),
	config.ProviderTypeOpenAICompatible: NewCapabilitySet(Grounding, CodeExecution),
	config.ProviderTypeAnthropic:        NewCapabilitySet(Grounding),
}

// Info describes a configured provider without building it.
type Info struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Model        string       `json:"model"`
	Default      bool         `json:"default"`
	KeyPresent   bool         `json:"key_present"`
	Capabilities []Capability `json:"capabilities"`
}

// Describe lists the configured providers in config order.
func (r *Registry) Describe() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		cfg := r.providers[id]
		caps := typeCapabilities[strings.TrimSpace(cfg.Type)].List()
		if caps == nil {
			caps = []Capability{}
		}
		out = append(out, Info{
			ID:           id,
			Type:         cfg.Type,
			Model:        cfg.Model,
			Default:      id == r.defaultID,
			KeyPresent:   strings.TrimSpace(r.getenv(cfg.KeyEnv())) != "",
			Capabilities: caps,
		})
	}
	return out
}
