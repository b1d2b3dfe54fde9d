package oauth

import (
	"net/http"
	"net/url"

	"github.com/lifeboard/lifeboard/internal/common/config"
)

// ProviderGoogle is the registry name for the Google provider
const ProviderGoogle = "google"

// NewGoogleProvider creates the Google Calendar/Drive integration provider.
// access_type=offline with prompt=consent makes Google return a refresh
// token on every authorization, not only the first.
func NewGoogleProvider(cfg config.ProviderConfig, client *http.Client) Provider {
	return &baseProvider{
		name:         ProviderGoogle,
		cfg:          cfg,
		authorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL:     "https://oauth2.googleapis.com/token",
		scopes:       "https://www.googleapis.com/auth/calendar.readonly https://www.googleapis.com/auth/drive.readonly",
		style:        credentialsInBody,
		extraParams: url.Values{
			"access_type": {"offline"},
			"prompt":      {"consent"},
		},
		client: client,
	}
}
