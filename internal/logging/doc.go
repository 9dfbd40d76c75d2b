// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Dual output (stdout + OpenTelemetry)
//   - Defense-in-depth secret redaction
//
// # Usage
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.New(cfg, otelProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync(logger)
//
// # Secret Redaction
//
// CI logs routinely carry tokens and credentials, so the encoder
// redacts at two layers: field name filtering and value pattern
// matching. Use the helper for manual redaction:
//
//	logger.Info("auth received",
//	    logging.RedactedString("authorization", authHeader))
package logging
