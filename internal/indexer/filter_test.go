package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"README.md", true},
		{"docs/README.rst", true},
		{"README", true},
		{"package.json", true},
		{"src/index.ts", true},
		{"", false},
		{".env", false},
		{"config/.env.production", false},
		{"docs/credentials.md", false},
		{"SECRET_README.md", false},
		{"private/README.md", false},
		{"deploy/server.pem", false},
		{"auth/README.md", false},
		{"docs/api_key.txt", false},
		{".git/HEAD", false},
		{"home/.ssh/README", false},
		{"README.pdf", false},
		{"logo.png", false},
		{"go.mod", false},
		{".profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSafePath(tt.path))
		})
	}
}

func TestPathFilter_Exclude(t *testing.T) {
	f, err := NewPathFilter([]string{"**/node_modules/**", "vendor/**"})
	require.NoError(t, err)

	assert.False(t, f.Allowed("web/node_modules/left-pad/README.md"))
	assert.False(t, f.Allowed("vendor/github.com/x/README.md"))
	assert.True(t, f.Allowed("docs/README.md"))
}

func TestNewPathFilter_InvalidPattern(t *testing.T) {
	_, err := NewPathFilter([]string{"[unclosed"})
	assert.Error(t, err)
}
