// Package configs embeds the configuration template written by
// `reposcout config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/reposcout/config.yaml)
//  3. Project config (.reposcout.yaml)
//  4. Environment variables (REPOSCOUT_*, GITLAB_PRIVATE_TOKEN)
package configs

import _ "embed"

// UserConfigTemplate is the commented user configuration.
//
//go:embed config.example.yaml
var UserConfigTemplate string
