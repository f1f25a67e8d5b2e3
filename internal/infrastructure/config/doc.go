// Package config loads Gatekeeper configuration.
//
// Load reads a YAML file over built-in defaults, applies GATEKEEPER_*
// environment overrides, then validates the result and reports every
// problem in one error. Secrets (postgres URL, seed admin password, broker
// and InfluxDB credentials) belong in the environment, not the file.
package config
