// Package config manages the lobby server's runtime configuration.
//
// The config package implements:
//   - Built-in defaults for every listener, buffer and timeout
//   - Loading from JSON (.json) or YAML (.yaml, .yml) files
//   - Validation with ErrInvalidConfig-wrapped errors
//   - File validation reports for the validate command
//   - Thread-safe access to the active configuration through Manager
//
// Precedence (lowest to highest): defaults, config file, .env file, process
// environment and command-line flags. The last two are applied by the command
// layer through Manager.Update.
//
// Example YAML:
//
//	tcp_addr: ":3001"
//	http_addr: "localhost:8080"
//	send_buffer: 32
//	write_timeout: 10s
//	log_level: info
//	ngrok:
//	  enabled: false
package config
