// Package config defines the gateway configuration, its YAML loader with
// environment-variable substitution, validation, and a file watcher that
// drives hot reloads.
package config
