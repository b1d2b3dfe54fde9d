package oauth

import (
	"net/http"

	"github.com/lifeboard/lifeboard/internal/common/config"
)

// ProviderSpotify is the registry name for the Spotify provider
const ProviderSpotify = "spotify"

// NewSpotifyProvider creates the Spotify media integration provider.
// Spotify requires client credentials as an HTTP Basic Authorization
// header on token calls rather than form fields.
func NewSpotifyProvider(cfg config.ProviderConfig, client *http.Client) Provider {
	return &baseProvider{
		name:         ProviderSpotify,
		cfg:          cfg,
		authorizeURL: "https://accounts.spotify.com/authorize",
		tokenURL:     "https://accounts.spotify.com/api/token",
		scopes:       "user-read-playback-state user-library-read playlist-read-private",
		style:        credentialsBasicAuth,
		client:       client,
	}
}
