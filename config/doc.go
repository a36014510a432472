// Package config loads and validates mayara's runtime configuration:
// discovery interfaces, timing options and the allowed-vendor filter
// A Loader reads a YAML file, validates it against a JSON
// Schema, applies MAYARA_* environment overrides, then fills in
// defaults for anything left unset.
//
//	loader := config.NewLoader()
//	cfg, err := loader.LoadFile("mayara.yaml")
//
// SafeConfig wraps a *Config for components that need a consistent
// read-mostly view across goroutines.
package config
