// Package logging provides structured logging utilities for the triagemail application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email-address anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "feed.sync")
//	logger.Info("synced analyzed emails",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("record ingested",
//	    logging.SenderHash(record.Sender))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Sender addresses are hashed to prevent PII leakage while allowing correlation
//   - Access tokens are never logged directly
package logging
