package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lifeboard/lifeboard/internal/auth"
	apperrors "github.com/lifeboard/lifeboard/internal/common/errors"
	"github.com/lifeboard/lifeboard/internal/metrics"
)

// Target validation errors, surfaced to the caller as 400s
var (
	errEmptyTarget     = apperrors.ValidationError("Missing url query parameter")
	errMalformedTarget = apperrors.ValidationError("Invalid URL format")
)

// Proxy forwards authenticated caller requests to allow-listed third-party
// APIs, applying header filtering and per-caller rate limits on the way out.
type Proxy struct {
	allowlist    *Allowlist
	limiter      *RateLimiter
	client       *http.Client
	relayCookies bool
	logger       *zap.Logger
}

// ProxyOptions configures a Proxy
type ProxyOptions struct {
	Allowlist    *Allowlist
	Limiter      *RateLimiter // nil disables rate limiting
	Timeout      time.Duration
	RelayCookies bool
	Logger       *zap.Logger
}

// NewProxy creates the outbound proxy handler. The HTTP client never
// follows redirects: chasing a redirect would bypass the allowlist check
// for the redirect target, so 3xx statuses are relayed as-is.
func NewProxy(opts ProxyOptions) *Proxy {
	return &Proxy{
		allowlist: opts.Allowlist,
		limiter:   opts.Limiter,
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		relayCookies: opts.RelayCookies,
		logger:       opts.Logger,
	}
}

// Handle serves the proxy endpoint. The target is the url query parameter;
// method, body, and surviving headers are forwarded as-is.
func (p *Proxy) Handle(c *gin.Context) {
	target, err := ValidateTarget(c.Query("url"))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	if p.limiter != nil {
		key := RateLimitKey(auth.GetUserID(c), c.ClientIP())
		if allowed, retryAfter := p.limiter.Allow(c.Request.Context(), key); !allowed {
			metrics.RateLimitedTotal.Inc()
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			apperrors.HandleError(c, apperrors.RateLimited(retryAfter))
			return
		}
	}

	if !p.allowlist.Allows(target) {
		p.logger.Warn("Proxy target rejected",
			zap.String("host", target.Hostname()),
			zap.String("user_id", auth.GetUserID(c)))
		apperrors.HandleError(c, apperrors.ForbiddenTarget(target.Hostname()))
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target.String(), c.Request.Body)
	if err != nil {
		apperrors.HandleError(c, errMalformedTarget)
		return
	}
	// relayCookies governs only response Set-Cookie relay; caller cookies
	// never travel upstream.
	req.Header = BuildForwardHeaders(c.Request.Header, false)

	// A body-carrying request without a declared content type defaults to
	// JSON, which is what every caller of this endpoint actually sends.
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead &&
		c.Request.ContentLength != 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		appErr := classifyForwardError(err)
		p.logger.Error("Upstream request failed",
			zap.String("host", target.Hostname()),
			zap.String("method", c.Request.Method),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		metrics.RecordProxyRequest(c.Request.Method, appErr.StatusCode, target.Hostname(), elapsed)
		apperrors.HandleError(c, appErr)
		return
	}

	metrics.RecordProxyRequest(c.Request.Method, resp.StatusCode, target.Hostname(), elapsed)

	if err := RelayResponse(c, resp, p.relayCookies); err != nil {
		// Headers and status are already written; all we can do is log
		p.logger.Warn("Response relay interrupted",
			zap.String("host", target.Hostname()),
			zap.Error(err))
	}
}

// classifyForwardError maps transport failures onto the gateway error
// taxonomy: timeouts become 504, everything else on the connection path
// becomes 502. The proxy never reports its own 500 for upstream trouble.
func classifyForwardError(err error) *apperrors.AppError {
	if isTimeoutError(err) {
		return apperrors.UpstreamTimeout(err)
	}
	return apperrors.UpstreamUnreachable(err)
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
