// Package observability provides structured logging and metrics for the
// AI routing gateway.
//
// This package implements:
//   - Structured logging with contextual fields (zap-based)
//   - Prometheus-compatible metrics collection
//   - Request ID propagation
//
// All routing stages are instrumented for full observability.
package observability
