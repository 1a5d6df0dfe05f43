// Package config defines the run settings for the fleet updater and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type covers the inventory path, the edit to apply, SSH identity
// and the run's concurrency and timeout limits.
package config
