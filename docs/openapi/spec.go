// Package openapi embeds the OpenAPI description of the fieldmonitor HTTP API.
package openapi

import _ "embed"

// Document is the raw OpenAPI YAML.
//
//go:embed fieldmonitor.yaml
var Document []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), Document...)
}
