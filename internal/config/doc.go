// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. Besides server settings it carries the
// default plate geometry and the named dilution configurations the service
// starts with.
package config
