package providers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vitalis-health/ai-routing/models"
)

// CatalogEntry pairs a provider's routing configuration with its network
// endpoint. API keys are referenced by environment variable name so the
// catalog file never holds secrets.
type CatalogEntry struct {
	Provider models.ProviderConfig `json:"provider"`
	Endpoint struct {
		BaseURL   string            `json:"base_url"`
		APIKeyEnv string            `json:"api_key_env"`
		Headers   map[string]string `json:"headers,omitempty"`
	} `json:"endpoint"`
}

// Catalog is the parsed provider catalog file.
type Catalog struct {
	Providers []CatalogEntry `json:"providers"`
}

// LoadCatalog reads and validates a provider catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}

	for i, entry := range catalog.Providers {
		if entry.Provider.ID == "" {
			return nil, fmt.Errorf("provider catalog entry %d has no id", i)
		}
		if len(entry.Provider.Models) == 0 {
			return nil, fmt.Errorf("provider %s has no models", entry.Provider.ID)
		}
		if entry.Endpoint.BaseURL == "" {
			return nil, fmt.Errorf("provider %s has no endpoint base URL", entry.Provider.ID)
		}
	}

	return &catalog, nil
}

// Endpoints resolves the catalog into transport endpoints, reading API keys
// from the environment.
func (c *Catalog) Endpoints() map[string]Endpoint {
	out := make(map[string]Endpoint, len(c.Providers))
	for _, entry := range c.Providers {
		out[entry.Provider.ID] = Endpoint{
			BaseURL: entry.Endpoint.BaseURL,
			APIKey:  os.Getenv(entry.Endpoint.APIKeyEnv),
			Headers: entry.Endpoint.Headers,
		}
	}
	return out
}

// Configs returns the provider configurations for registry registration.
func (c *Catalog) Configs() []models.ProviderConfig {
	out := make([]models.ProviderConfig, len(c.Providers))
	for i, entry := range c.Providers {
		out[i] = entry.Provider
	}
	return out
}
