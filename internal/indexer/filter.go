package indexer

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// sensitivePath matches paths that must never be fetched, searched against
// the lower-cased path.
var sensitivePath = regexp.MustCompile(strings.Join([]string{
	`\.env`, `credential`, `secret`, `private`, `passwd`, `password`,
	`\.key`, `\.pem`, `token`, `api_key`, `auth`, `\.git/`, `ssh/`,
	`id_rsa`, `keystore`, `\.jks`, `\.p12`, `\.pfx`, `netrc`, `\.htpasswd`,
}, "|"))

var allowedExtensions = map[string]bool{
	".md": true, ".rst": true, ".txt": true, ".markdown": true,
	".py": true, ".js": true, ".ts": true, ".go": true, ".rs": true,
	".json": true, ".toml": true, ".yaml": true, ".yml": true,
	"": true,
}

// PathFilter decides which repository files may be indexed.
type PathFilter struct {
	exclude []string
}

// NewPathFilter validates the extra exclude globs.
func NewPathFilter(exclude []string) (*PathFilter, error) {
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &PathFilter{exclude: exclude}, nil
}

// Allowed reports whether p is safe to fetch: non-empty, not sensitive,
// with an allowed extension and not excluded.
func (f *PathFilter) Allowed(p string) bool {
	if !IsSafePath(p) {
		return false
	}
	if f == nil {
		return true
	}
	for _, pattern := range f.exclude {
		if match, _ := doublestar.Match(pattern, p); match {
			return false
		}
	}
	return true
}

// IsSafePath applies the built-in denylist and extension allowlist.
func IsSafePath(p string) bool {
	if p == "" {
		return false
	}
	lower := strings.ToLower(p)
	if sensitivePath.MatchString(lower) {
		return false
	}
	return allowedExtensions[extension(lower)]
}

// extension returns the suffix after the last dot of the base name,
// ignoring leading dots so ".profile" has no extension.
func extension(p string) string {
	base := strings.TrimLeft(path.Base(p), ".")
	return path.Ext(base)
}
