// Package config loads, normalizes, and validates notes server configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// CHEST_DATABASE_URL and PORT. The Config type centralizes every knob the
// daemon and CLI need so storage locations, server limits and transcoder
// settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
