package gateway

import (
	"net/http"
)

// Header names with special handling on the forward path
const (
	headerAuthorization       = "Authorization"
	headerTargetAuthorization = "X-Target-Authorization"
	headerCookie              = "Cookie"
	headerSetCookie           = "Set-Cookie"
)

// forwardDropHeaders are request headers never copied to the upstream
// request. Host and Content-Length are managed by the HTTP client;
// Connection is hop-by-hop; Origin and Referer leak the caller's context
// to third-party APIs.
var forwardDropHeaders = map[string]struct{}{
	"Host":           {},
	"Content-Length": {},
	"Connection":     {},
	"Origin":         {},
	"Referer":        {},
}

// hopByHopHeaders are stripped in both directions per RFC 9110 §7.6.1
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// BuildForwardHeaders computes the header set for the upstream request from
// the incoming request headers.
//
// The caller's Authorization header is the gateway credential and is never
// forwarded. When X-Target-Authorization is present, its value becomes the
// upstream Authorization header. Cookie headers pass only when
// forwardCookies is set; the proxy never sets it, so caller cookies stay
// on the gateway side regardless of the response cookie-relay policy.
func BuildForwardHeaders(incoming http.Header, forwardCookies bool) http.Header {
	out := make(http.Header, len(incoming))

	for name, values := range incoming {
		canonical := http.CanonicalHeaderKey(name)

		if _, drop := forwardDropHeaders[canonical]; drop {
			continue
		}
		if _, drop := hopByHopHeaders[canonical]; drop {
			continue
		}
		if canonical == headerAuthorization || canonical == headerTargetAuthorization {
			continue
		}
		if canonical == headerCookie && !forwardCookies {
			continue
		}

		for _, v := range values {
			out.Add(canonical, v)
		}
	}

	// Install the caller-supplied upstream credential under the real
	// Authorization name.
	if target := incoming.Get(headerTargetAuthorization); target != "" {
		out.Set(headerAuthorization, target)
	}

	return out
}
