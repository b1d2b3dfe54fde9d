package oauth

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/lifeboard/lifeboard/internal/common/config"
	apperrors "github.com/lifeboard/lifeboard/internal/common/errors"
)

// Registry resolves provider names to implementations. It is built once at
// startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry constructs every known provider from the configuration map.
// Providers with no configuration entry are still registered so lookups
// surface "not configured" rather than "unsupported"; truly unknown names
// stay unsupported.
func NewRegistry(cfgs map[string]config.ProviderConfig, client *http.Client, logger *zap.Logger) *Registry {
	if client == nil {
		client = http.DefaultClient
	}

	constructors := map[string]func(config.ProviderConfig, *http.Client) Provider{
		ProviderGoogle:  NewGoogleProvider,
		ProviderGitHub:  NewGitHubProvider,
		ProviderSpotify: NewSpotifyProvider,
	}

	providers := make(map[string]Provider, len(constructors))
	for name, construct := range constructors {
		p := construct(cfgs[name], client)
		providers[name] = p
		if p.IsConfigured() {
			logger.Info("OAuth provider configured", zap.String("provider", name))
		} else {
			logger.Debug("OAuth provider not configured", zap.String("provider", name))
		}
	}

	return &Registry{providers: providers}
}

// Get returns the named provider. Unknown names return UnsupportedProvider;
// known but unconfigured names return ProviderNotConfigured, so the caller
// error vs server misconfiguration distinction survives to the HTTP layer.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, apperrors.UnsupportedProvider(name)
	}
	if !p.IsConfigured() {
		return nil, apperrors.ProviderNotConfigured(name)
	}
	return p, nil
}

// ProviderStatus describes one provider for capability discovery
type ProviderStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// List returns every registered provider and its configured status, sorted
// by name for stable output
func (r *Registry) List() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, ProviderStatus{Name: name, Configured: p.IsConfigured()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
