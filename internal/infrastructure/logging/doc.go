// Package logging provides structured logging for the VLX bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON or text output
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Size-based file rotation via lumberjack
//   - A separate gateway logger that can run at debug level on its own
//
// # Configuration
//
//	logging:
//	  level: "info"         # debug, info, warn, error
//	  format: "text"        # json, text
//	  output: "file"        # stdout, stderr, file
//	  gateway_debug: false
//	  file:
//	    path: "/var/log/vlxbridge.log"
//	    max_size: 10        # MB
//	    max_backups: 5
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("starting bridge", "nodes", 4)
//
// Never log the MQTT or gateway passwords.
package logging
