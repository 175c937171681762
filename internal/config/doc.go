// Package config loads, normalizes, and validates matrixscreen configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FIJI_BINARY. The Config type centralizes every knob the scanner, the stitch
// planner and the compression driver need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extension lists, and clear validation errors.
package config
