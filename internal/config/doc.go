// Package config handles configuration loading for academy-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ACADEMY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/academy/gateway.yaml
//  3. ~/.config/academy/gateway.yaml
//
// A .env file in the working directory is loaded first by LoadDotEnv, so
// secrets can live outside the YAML. Variables already in the environment win.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ACADEMY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to "".
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	proxy:
//	  timeout: "15s"
//	  duplicate_window: "2m"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "15s"
//
//	database:
//	  path: "/var/lib/academy/gateway.db"
//	  driver: "sqlite"        # sqlite (pure Go) or sqlite3 (cgo)
//	  busy_timeout: "5s"
//
//	auth:
//	  jwt_secret: "${ACADEMY_JWT_SECRET}"   # at least 32 bytes
//	  session_ttl: "24h"
//	  cookie_name: "academy_admin_session"
//	  cookie_secure: true
//
//	proxy:
//	  allowed_hosts: [".google.com"]       # empty allows any http(s) host
//	  timeout: "15s"
//	  duplicate_window: "0s"               # 0 disables duplicate suppression
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	if err := config.LoadDotEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load(config.Path())
package config
