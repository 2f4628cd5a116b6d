// Package config loads, normalizes, and validates the bookpub TOML
// configuration.
//
// Default supplies every value, Load overlays a file on top, and normalize
// expands paths and pulls secrets from the environment when the file leaves
// them blank. RequirePublishing is the stricter gate used by commands that
// talk to the chain, the storage backend, and the listings backend.
package config
