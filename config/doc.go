// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration
// structure including server settings, circuit breaker thresholds, the daily
// recipient quota, and the ordered list of notification channels.
package config
