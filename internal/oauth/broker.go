package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeboard/lifeboard/internal/auth"
	apperrors "github.com/lifeboard/lifeboard/internal/common/errors"
	"github.com/lifeboard/lifeboard/internal/handoff"
	"github.com/lifeboard/lifeboard/internal/metrics"
)

const (
	// stateTTL bounds the window between issuing an authorization URL and
	// the provider redirecting back
	stateTTL = 10 * time.Minute

	// handoffTTL bounds the window between the callback storing tokens and
	// the client fetching them
	handoffTTL = 2 * time.Minute

	stateKeyPrefix   = "state:"
	handoffKeyPrefix = "handoff:"
)

// statePayload binds an issued state token to the user and provider that
// started the flow
type statePayload struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

// handoffPayload is the single-read token delivery envelope
type handoffPayload struct {
	Provider string `json:"provider"`
	Tokens   Tokens `json:"tokens"`
}

// Broker orchestrates the authorization-code flow: start issues state and
// an authorization URL, callback exchanges the code and parks the tokens,
// handoff delivers them exactly once, refresh passes a refresh grant
// through.
type Broker struct {
	registry     *Registry
	store        handoff.Store
	frontendURL  string
	redirectPath string
	logger       *zap.Logger
}

// BrokerOptions configures a Broker
type BrokerOptions struct {
	Registry     *Registry
	Store        handoff.Store
	FrontendURL  string
	RedirectPath string
	Logger       *zap.Logger
}

// NewBroker creates the OAuth broker
func NewBroker(opts BrokerOptions) *Broker {
	return &Broker{
		registry:     opts.Registry,
		store:        opts.Store,
		frontendURL:  opts.FrontendURL,
		redirectPath: opts.RedirectPath,
		logger:       opts.Logger,
	}
}

// RegisterRoutes mounts the broker endpoints. requireUser guards every
// route except the callback, which is hit by the provider's redirect of the
// end-user's browser and cannot carry our bearer token.
func (b *Broker) RegisterRoutes(r gin.IRouter, requireUser gin.HandlerFunc) {
	g := r.Group("/integrations/oauth")
	g.GET("/providers", requireUser, b.ListProviders)
	g.GET("/start", requireUser, b.Start)
	g.GET("/callback/:provider", b.Callback)
	g.GET("/handoff", requireUser, b.Handoff)
	g.POST("/refresh", requireUser, b.Refresh)
}

// ListProviders reports every provider and whether it is configured
func (b *Broker) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": b.registry.List()})
}

// Start issues a state token and returns the provider's authorization URL
func (b *Broker) Start(c *gin.Context) {
	providerName := c.Query("provider")
	if providerName == "" {
		apperrors.HandleError(c, apperrors.ValidationError("Missing provider query parameter"))
		return
	}

	provider, err := b.registry.Get(providerName)
	if err != nil {
		metrics.RecordOAuthFlow(providerName, "start", "error")
		apperrors.HandleError(c, err)
		return
	}

	state := uuid.New().String()
	payload, err := json.Marshal(statePayload{
		UserID:   auth.GetUserID(c),
		Provider: providerName,
	})
	if err != nil {
		apperrors.HandleError(c, apperrors.Internal("Failed to encode state", err))
		return
	}

	if err := b.store.Put(c.Request.Context(), stateKeyPrefix+state, payload, stateTTL); err != nil {
		metrics.RecordOAuthFlow(providerName, "start", "error")
		apperrors.HandleError(c, apperrors.Internal("Failed to store state", err))
		return
	}

	authURL, err := provider.AuthorizationURL(state)
	if err != nil {
		metrics.RecordOAuthFlow(providerName, "start", "error")
		apperrors.HandleError(c, apperrors.ProviderNotConfigured(providerName))
		return
	}

	metrics.RecordOAuthFlow(providerName, "start", "ok")
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

// Callback handles the provider's browser redirect. The outcome always
// travels back to the frontend as a 302 with query parameters: this is a
// browser navigation, not an API call, so an error status would strand the
// user on a blank page.
func (b *Broker) Callback(c *gin.Context) {
	providerName := c.Param("provider")

	if provErr := c.Query("error"); provErr != "" {
		b.logger.Warn("OAuth callback carried a provider error",
			zap.String("provider", providerName),
			zap.String("error", provErr))
		metrics.RecordOAuthFlow(providerName, "callback", "provider_error")
		b.redirectError(c, providerName, provErr)
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		metrics.RecordOAuthFlow(providerName, "callback", "invalid_state")
		b.redirectError(c, providerName, string(apperrors.ErrInvalidState))
		return
	}

	// The state entry is consumed here regardless of what follows; a
	// replayed callback never reaches the code exchange.
	raw, err := b.store.Take(c.Request.Context(), stateKeyPrefix+state)
	if err != nil {
		if !errors.Is(err, handoff.ErrNotFound) {
			b.logger.Error("State store read failed", zap.Error(err))
		}
		metrics.RecordOAuthFlow(providerName, "callback", "invalid_state")
		b.redirectError(c, providerName, string(apperrors.ErrInvalidState))
		return
	}

	var sp statePayload
	if err := json.Unmarshal(raw, &sp); err != nil || sp.Provider != providerName {
		metrics.RecordOAuthFlow(providerName, "callback", "invalid_state")
		b.redirectError(c, providerName, string(apperrors.ErrInvalidState))
		return
	}

	provider, err := b.registry.Get(providerName)
	if err != nil {
		metrics.RecordOAuthFlow(providerName, "callback", "error")
		b.redirectError(c, providerName, errorCodeOf(err))
		return
	}

	tokens, err := provider.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		b.logger.Error("Token exchange failed",
			zap.String("provider", providerName),
			zap.Error(err))
		metrics.RecordOAuthFlow(providerName, "callback", "exchange_failed")
		b.redirectError(c, providerName, string(apperrors.ErrTokenExchange))
		return
	}

	handoffID := uuid.New().String()
	payload, err := json.Marshal(handoffPayload{Provider: providerName, Tokens: tokens})
	if err != nil {
		metrics.RecordOAuthFlow(providerName, "callback", "error")
		b.redirectError(c, providerName, string(apperrors.ErrInternal))
		return
	}

	if err := b.store.Put(c.Request.Context(), handoffKeyPrefix+handoffID, payload, handoffTTL); err != nil {
		b.logger.Error("Handoff store write failed", zap.Error(err))
		metrics.RecordOAuthFlow(providerName, "callback", "error")
		b.redirectError(c, providerName, string(apperrors.ErrInternal))
		return
	}

	metrics.RecordOAuthFlow(providerName, "callback", "ok")
	metrics.HandoffsParkedTotal.Inc()

	// The handoff id travels in the redirect URL; the tokens never do.
	b.redirect(c, url.Values{
		"handoff":  {handoffID},
		"provider": {providerName},
	})
}

// Handoff delivers a parked token payload exactly once. A repeated id, an
// expired entry, and an unknown id are indistinguishable to the caller.
func (b *Broker) Handoff(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		apperrors.HandleError(c, apperrors.ValidationError("Missing id query parameter"))
		return
	}

	raw, err := b.store.Take(c.Request.Context(), handoffKeyPrefix+id)
	if err != nil {
		if !errors.Is(err, handoff.ErrNotFound) {
			b.logger.Error("Handoff store read failed", zap.Error(err))
		}
		apperrors.HandleError(c, apperrors.HandoffNotFound())
		return
	}

	metrics.HandoffsDeliveredTotal.Inc()

	var hp handoffPayload
	if err := json.Unmarshal(raw, &hp); err != nil {
		apperrors.HandleError(c, apperrors.Internal("Corrupt handoff payload", err))
		return
	}

	metrics.RecordOAuthFlow(hp.Provider, "handoff", "ok")
	c.JSON(http.StatusOK, hp)
}

// refreshRequest is the refresh endpoint body
type refreshRequest struct {
	Provider     string `json:"provider"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh passes a refresh_token grant through to the provider
func (b *Broker) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Provider == "" || req.RefreshToken == "" {
		apperrors.HandleError(c, apperrors.ValidationError("Missing provider or refresh_token"))
		return
	}

	provider, err := b.registry.Get(req.Provider)
	if err != nil {
		metrics.RecordOAuthFlow(req.Provider, "refresh", "error")
		apperrors.HandleError(c, err)
		return
	}

	tokens, err := provider.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		b.logger.Error("Token refresh failed",
			zap.String("provider", req.Provider),
			zap.Error(err))
		metrics.RecordOAuthFlow(req.Provider, "refresh", "error")
		apperrors.HandleError(c, apperrors.TokenRefresh(req.Provider, err))
		return
	}

	metrics.RecordOAuthFlow(req.Provider, "refresh", "ok")
	c.JSON(http.StatusOK, gin.H{
		"provider": req.Provider,
		"tokens":   tokens,
	})
}

// redirect sends the browser back to the frontend integrations page with
// the given query parameters
func (b *Broker) redirect(c *gin.Context, q url.Values) {
	target := b.frontendURL + b.redirectPath + "?" + q.Encode()
	c.Redirect(http.StatusFound, target)
}

// redirectError encodes a failure outcome into the frontend redirect
func (b *Broker) redirectError(c *gin.Context, providerName, reason string) {
	b.redirect(c, url.Values{
		"oauth":    {"error"},
		"provider": {providerName},
		"reason":   {reason},
	})
}

// errorCodeOf extracts the taxonomy code for redirect reasons
func errorCodeOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return string(apperrors.ErrInternal)
}
