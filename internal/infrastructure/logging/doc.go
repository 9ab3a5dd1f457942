// Package logging provides structured logging for the Android TV bridge.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log ADB private keys, JWT secrets or MQTT passwords.
package logging
