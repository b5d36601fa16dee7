// Package config loads application configuration from BAZAAR_* environment
// variables and validates it at startup.
package config
