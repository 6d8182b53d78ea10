// Package configs embeds the configuration template written by
// `swiftsearch config init`.
package configs

import _ "embed"

// UserConfigTemplate is the commented user configuration written to
// ~/.config/swiftsearch/config.yaml. Every active key holds its default.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
