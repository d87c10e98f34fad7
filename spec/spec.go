// Package spec embeds the OpenAPI description of the marker API, served by
// the handler package at /openapi.yaml.
package spec

import _ "embed"

// OpenAPI holds the raw bytes of openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
