// Package gateway implements the authenticated outbound proxy endpoint.
package gateway

import (
	"net/url"
	"strings"
)

// Allowlist restricts which upstream hosts the proxy will forward to.
// Matching is by exact hostname, case-insensitive, port and path ignored.
// An empty allowlist runs the proxy in open mode and accepts any http(s)
// host; that is a development convenience, not a production posture.
type Allowlist struct {
	hosts map[string]struct{}
}

// NewAllowlist builds an allowlist from configured hostnames. Entries are
// normalized to lowercase; blank entries are dropped.
func NewAllowlist(hosts []string) *Allowlist {
	m := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		m[h] = struct{}{}
	}
	return &Allowlist{hosts: m}
}

// IsOpen reports whether the allowlist is empty and all http(s) hosts
// are accepted
func (a *Allowlist) IsOpen() bool {
	return len(a.hosts) == 0
}

// Allows reports whether the target URL is permitted. Fails closed: only
// http and https schemes pass, and outside open mode the hostname must
// exactly match a configured entry. No wildcard or subdomain matching.
func (a *Allowlist) Allows(target *url.URL) bool {
	if target.Scheme != "http" && target.Scheme != "https" {
		return false
	}
	if a.IsOpen() {
		return true
	}
	_, ok := a.hosts[strings.ToLower(target.Hostname())]
	return ok
}

// ValidateTarget parses and validates a raw proxy target. The target must
// parse as an absolute URL; scheme policy is the allowlist's concern.
func ValidateTarget(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errEmptyTarget
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, errMalformedTarget
	}

	return u, nil
}
