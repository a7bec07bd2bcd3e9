// Package config provides configuration loading and validation for the voip agent.
// It handles YAML-based configuration with struct validation plus environment
// variable overrides for connection secrets.
package config
