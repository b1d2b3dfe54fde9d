package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProxyRouter(p *Proxy, userID string) *gin.Engine {
	r := gin.New()
	r.Any("/agp", func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		p.Handle(c)
	})
	return r
}

func newTestProxy(allowedHosts []string, limiter *RateLimiter, timeout time.Duration) *Proxy {
	return NewProxy(ProxyOptions{
		Allowlist: NewAllowlist(allowedHosts),
		Limiter:   limiter,
		Timeout:   timeout,
		Logger:    zap.NewNop(),
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProxyMissingURL(t *testing.T) {
	r := newProxyRouter(newTestProxy(nil, nil, time.Second), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agp", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	assert.Equal(t, "Missing url query parameter", body["message"])
}

func TestProxyInvalidURL(t *testing.T) {
	r := newProxyRouter(newTestProxy(nil, nil, time.Second), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agp?url=not-a-url", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid URL format", decodeError(t, w)["message"])
}

func TestProxyForbiddenTarget(t *testing.T) {
	r := newProxyRouter(newTestProxy([]string{"api.example.com"}, nil, time.Second), "u-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agp?url="+url.QueryEscape("http://evil.example/"), nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "FORBIDDEN_TARGET", body["error"])
}

func TestProxyRelaysUpstreamResponse(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Etag", `"abc"`)
		w.Header().Set("X-Internal", "secret")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	r := newProxyRouter(newTestProxy(nil, nil, 5*time.Second), "u-1")

	req := httptest.NewRequest(http.MethodPost, "/agp?url="+url.QueryEscape(upstream.URL+"/items"), strings.NewReader(`{"a":1}`))
	req.Header.Set("Authorization", "Bearer session-token")
	req.Header.Set("X-Target-Authorization", "Bearer upstream-token")
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set("X-Custom", "kept")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `"abc"`, w.Header().Get("Etag"))
	assert.Empty(t, w.Header().Get("X-Internal"))

	// The upstream saw the override credential and nothing sensitive
	assert.Equal(t, "Bearer upstream-token", gotHeaders.Get("Authorization"))
	assert.Empty(t, gotHeaders.Get("X-Target-Authorization"))
	assert.Empty(t, gotHeaders.Get("Cookie"))
	assert.Empty(t, gotHeaders.Get("Origin"))
	assert.Equal(t, "kept", gotHeaders.Get("X-Custom"))
	// Body defaulted to JSON content type
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
}

func TestProxyRelayCookiesIsResponseOnly(t *testing.T) {
	var gotCookie string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Set-Cookie", "upstream=1")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := NewProxy(ProxyOptions{
		Allowlist:    NewAllowlist(nil),
		Timeout:      time.Second,
		RelayCookies: true,
		Logger:       zap.NewNop(),
	})
	r := newProxyRouter(p, "u-1")

	req := httptest.NewRequest(http.MethodGet, "/agp?url="+url.QueryEscape(upstream.URL), nil)
	req.Header.Set("Cookie", "session=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// Even with cookie relay enabled, the caller's gateway session cookie
	// must not reach the upstream; only the upstream's Set-Cookie comes back.
	assert.Empty(t, gotCookie)
	assert.Equal(t, "upstream=1", w.Header().Get("Set-Cookie"))
}

func TestProxyPassesThroughUpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream says no", http.StatusTeapot)
	}))
	defer upstream.Close()

	r := newProxyRouter(newTestProxy(nil, nil, 5*time.Second), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agp?url="+url.QueryEscape(upstream.URL), nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, w.Body.String(), "upstream says no")
}

func TestProxyUpstreamTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer upstream.Close()

	r := newProxyRouter(newTestProxy(nil, nil, 50*time.Millisecond), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agp?url="+url.QueryEscape(upstream.URL), nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "UPSTREAM_TIMEOUT", body["error"])
	assert.Equal(t, "Request timeout", body["message"])
}

func TestProxyUpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	r := newProxyRouter(newTestProxy(nil, nil, time.Second), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agp?url="+url.QueryEscape(target), nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_UNREACHABLE", decodeError(t, w)["error"])
}

func TestProxyRateLimited(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	limiter := NewRateLimiter(NewMemoryRateLimitStore(), 2, time.Minute, zap.NewNop())
	r := newProxyRouter(newTestProxy(nil, limiter, time.Second), "u-1")

	target := "/agp?url=" + url.QueryEscape(upstream.URL)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	body := decodeError(t, w)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])
	meta, ok := body["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 60, meta["retry_after"], 1)
}
