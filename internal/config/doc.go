// Package config provides centralized configuration management for stockdash.
// It handles loading configuration from multiple sources, validation, and
// provides a type-safe API for accessing configuration values.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//	1. Default values (Default)
//	2. YAML file (STOCKDASH_CONFIG_FILE, or config.yaml / configs/config.yaml)
//	3. Environment variables, including those loaded from a .env file
//
// # Environment Variables
//
// All environment variables follow the pattern STOCKDASH_<SECTION>_<FIELD>:
//
//	STOCKDASH_SERVER_PORT=8080
//	STOCKDASH_DATA_DIR=./data
//	STOCKDASH_DATA_PATTERN=*_data.csv
//	STOCKDASH_DATA_STRICT_SOURCES=false
//	STOCKDASH_LOGGING_LEVEL=debug
//	STOCKDASH_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	paths, err := cfg.GetPaths()
package config
