package ai

import (
	"github.com/benvon/taskpulse/internal/prioritizer"
)

// Provider is the interface for language model backends that can rank tasks
type Provider interface {
	prioritizer.Suggester

	// Model returns the model identifier requests are sent to
	Model() string
}

// ProviderConfig carries the settings a provider factory needs
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	DebugMode bool
}

// ProviderFactory creates a provider from its configuration
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// ProviderRegistry stores available providers by name
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider builds the named provider
func (r *ProviderRegistry) GetProvider(name string, cfg ProviderConfig) (Provider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return factory(cfg)
}

// ErrProviderNotFound is returned when a provider is not registered
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
