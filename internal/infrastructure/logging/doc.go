// Package logging provides structured logging for the Galaxie bridge.
//
// It wraps the standard log/slog package so every component logs with the
// same handler, level and default fields (service, version).
//
// Configuration comes from the logging section of the YAML config:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	feedLog := logger.With("component", "feed")
//	feedLog.Warn("fetch failed", "kind", "live", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
