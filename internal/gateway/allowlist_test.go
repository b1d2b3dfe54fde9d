package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid https", "https://api.example.com/v1/items", false},
		{"valid http with port", "http://api.example.com:8080/", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"relative path", "/v1/items", true},
		{"not a url", "not-a-url", true},
		{"scheme only", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ValidateTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, u.Host)
			}
		})
	}
}

func TestAllowlistExactMatch(t *testing.T) {
	al := NewAllowlist([]string{"api.example.com", " Other.Example.COM "})

	assert.True(t, al.Allows(mustParse(t, "https://api.example.com/path")))
	assert.True(t, al.Allows(mustParse(t, "https://API.EXAMPLE.COM/path")))
	assert.True(t, al.Allows(mustParse(t, "http://other.example.com/")))

	// Port is ignored for matching
	assert.True(t, al.Allows(mustParse(t, "https://api.example.com:8443/path")))

	assert.False(t, al.Allows(mustParse(t, "https://evil.example/")))
	assert.False(t, al.Allows(mustParse(t, "https://sub.api.example.com/")))
	assert.False(t, al.Allows(mustParse(t, "https://example.com/")))
}

func TestAllowlistRejectsNonHTTPSchemes(t *testing.T) {
	al := NewAllowlist([]string{"api.example.com"})

	assert.False(t, al.Allows(mustParse(t, "ftp://api.example.com/")))
	assert.False(t, al.Allows(mustParse(t, "file:///etc/passwd")))

	// Open mode still enforces the scheme check
	open := NewAllowlist(nil)
	assert.False(t, open.Allows(mustParse(t, "gopher://anything/")))
}

func TestAllowlistOpenMode(t *testing.T) {
	al := NewAllowlist([]string{})
	assert.True(t, al.IsOpen())
	assert.True(t, al.Allows(mustParse(t, "https://anything.example/")))
	assert.True(t, al.Allows(mustParse(t, "http://10.0.0.1:9000/internal")))

	// Blank entries do not count as configuration
	al = NewAllowlist([]string{"", "  "})
	assert.True(t, al.IsOpen())

	closed := NewAllowlist([]string{"api.example.com"})
	assert.False(t, closed.IsOpen())
}
