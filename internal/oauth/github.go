package oauth

import (
	"net/http"

	"github.com/lifeboard/lifeboard/internal/common/config"
)

// ProviderGitHub is the registry name for the GitHub provider
const ProviderGitHub = "github"

// NewGitHubProvider creates the GitHub integration provider. GitHub's token
// endpoint defaults to a form-encoded response; the Accept header set on
// every token call requests JSON instead.
func NewGitHubProvider(cfg config.ProviderConfig, client *http.Client) Provider {
	return &baseProvider{
		name:         ProviderGitHub,
		cfg:          cfg,
		authorizeURL: "https://github.com/login/oauth/authorize",
		tokenURL:     "https://github.com/login/oauth/access_token",
		scopes:       "repo read:user",
		style:        credentialsInBody,
		client:       client,
	}
}
