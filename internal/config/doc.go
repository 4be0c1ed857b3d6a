// Package config loads the radio daemon configuration.
//
// Configuration is merged from three layers: built-in defaults, an
// optional YAML file, and RHAL_* environment variable overrides, then
// validated as a whole.
package config
