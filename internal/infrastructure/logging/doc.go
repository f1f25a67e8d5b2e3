// Package logging wraps log/slog with the handler, level and default
// attributes configured in the logging section of config.yaml.
//
// Every record carries service=gatekeeper and the build version. Components
// derive child loggers with With("component", ...):
//
//	log := logging.New(cfg.Logging, version)
//	apiLog := log.With("component", "api")
//
// Usernames and remote addresses may be logged. Passwords, hashes and salts
// must not be; the one exception is a generated seed admin password, which
// is printed once at first boot.
package logging
