// Package observability provides structured logging and security metrics
// for the HR backend.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL/LOG_FORMAT
//   - Security meters (token failures, login outcomes, access decisions)
//   - Prometheus text exposition of the security meters
package observability
