package gateway

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// relayHeaders is the safe subset of upstream response headers passed back
// to the caller. Everything else is dropped: the upstream must not be able
// to set cookies, CORS policy, or connection behavior on the gateway's
// origin.
var relayHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"Etag",
	"Last-Modified",
}

// FilterResponseHeaders computes the header set relayed back to the caller
// from the upstream response. Set-Cookie passes only when relayCookies is
// set.
func FilterResponseHeaders(upstream http.Header, relayCookies bool) http.Header {
	out := make(http.Header, len(relayHeaders)+1)

	for _, name := range relayHeaders {
		for _, v := range upstream.Values(name) {
			out.Add(name, v)
		}
	}

	if relayCookies {
		for _, v := range upstream.Values(headerSetCookie) {
			out.Add(headerSetCookie, v)
		}
	}

	return out
}

// RelayResponse copies the upstream response to the caller: filtered
// headers first, then the upstream status code verbatim, then the body.
// JSON bodies are read fully before writing; other bodies are streamed
// through unmodified. Upstream error statuses (4xx/5xx) pass through
// unchanged so the caller sees exactly what the third-party API returned.
func RelayResponse(c *gin.Context, resp *http.Response, relayCookies bool) error {
	defer resp.Body.Close()

	for name, values := range FilterResponseHeaders(resp.Header, relayCookies) {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}

	if isJSONContentType(resp.Header.Get("Content-Type")) {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		c.Writer.WriteHeader(resp.StatusCode)
		_, err = c.Writer.Write(body)
		return err
	}

	c.Writer.WriteHeader(resp.StatusCode)
	_, err := io.Copy(c.Writer, resp.Body)
	return err
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "application/json") || strings.HasSuffix(mediaType(ct), "+json")
}

func mediaType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		return strings.TrimSpace(ct[:i])
	}
	return ct
}
