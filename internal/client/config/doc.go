// Package config loads runtime configuration for the GophSync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. JSON, YAML and TOML
//     are accepted; the format follows the file extension.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-i int      online status check interval (seconds)
//	-e string   persistence engine: sqlite, memory or s3
//	-d string   sqlite database path
//	-s string   status API listen address, empty to disable
//	-l string   log level
//
// Example file
//
//	server_endpoint_addr: 127.0.0.1:50051
//	retry_max_delay: 30s
//	persist:
//	  engine: sqlite
//	  dsn: /var/lib/gophsync/state.db
//	log:
//	  level: debug
//
// Watch re-reads the file on every change so the log level can be adjusted
// without a restart.
package config
