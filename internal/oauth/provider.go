// Package oauth implements the token broker for third-party integrations:
// provider implementations, the name registry, and the HTTP routes driving
// the authorization-code flow.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lifeboard/lifeboard/internal/common/config"
)

// Tokens is the provider's token endpoint response, relayed opaquely.
// Field names and contents are provider-defined (access_token,
// refresh_token, expires_in, scope, ...); the broker never reshapes them.
type Tokens map[string]interface{}

// Provider drives one external identity provider's authorization-code flow
type Provider interface {
	// Name returns the registry key for this provider
	Name() string

	// IsConfigured reports whether the provider has a client id and
	// redirect URI. Token calls additionally require a client secret.
	IsConfigured() bool

	// AuthorizationURL builds the provider's authorize endpoint URL with
	// the given CSRF state token echoed verbatim
	AuthorizationURL(state string) (string, error)

	// ExchangeCode trades an authorization code for tokens
	ExchangeCode(ctx context.Context, code string) (Tokens, error)

	// Refresh trades a refresh token for fresh tokens
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// credentialStyle selects how client credentials travel on token calls
type credentialStyle int

const (
	// credentialsInBody sends client_id/client_secret as form fields
	credentialsInBody credentialStyle = iota
	// credentialsBasicAuth sends them as an HTTP Basic Authorization header
	credentialsBasicAuth
)

// baseProvider carries the behavior shared by every provider; variants
// differ only in endpoints, scopes, extra authorize parameters, and
// credential style.
type baseProvider struct {
	name         string
	cfg          config.ProviderConfig
	authorizeURL string
	tokenURL     string
	scopes       string
	style        credentialStyle
	extraParams  url.Values
	client       *http.Client
}

func (p *baseProvider) Name() string {
	return p.name
}

func (p *baseProvider) IsConfigured() bool {
	return p.cfg.ClientID != "" && p.cfg.RedirectURI != ""
}

func (p *baseProvider) AuthorizationURL(state string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("provider %s is not configured", p.name)
	}

	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	if p.scopes != "" {
		q.Set("scope", p.scopes)
	}
	for k, vs := range p.extraParams {
		for _, v := range vs {
			q.Set(k, v)
		}
	}

	return p.authorizeURL + "?" + q.Encode(), nil
}

func (p *baseProvider) ExchangeCode(ctx context.Context, code string) (Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.RedirectURI)

	return p.tokenCall(ctx, form)
}

func (p *baseProvider) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	return p.tokenCall(ctx, form)
}

// tokenCall POSTs a grant to the provider's token endpoint and decodes the
// JSON response. The call carries no timeout of its own; the request
// context bounds it.
func (p *baseProvider) tokenCall(ctx context.Context, form url.Values) (Tokens, error) {
	if !p.IsConfigured() || p.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("provider %s is not configured for token calls", p.name)
	}

	switch p.style {
	case credentialsInBody:
		form.Set("client_id", p.cfg.ClientID)
		form.Set("client_secret", p.cfg.ClientSecret)
	case credentialsBasicAuth:
		// credentials go in the Authorization header below
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if p.style == credentialsBasicAuth {
		req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var tokens Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	return tokens, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
