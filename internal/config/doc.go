// Package config loads the automator run configuration from JSON, fills in
// defaults, applies command-line overrides and validates the result before
// the run loop starts.
package config
