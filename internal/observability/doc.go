// Package observability provides logging and metrics support for the
// reference enrichment service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for reconciliation passes, source searches,
//     matching/merging, and the enrichment cache
//   - Context helpers for propagating pass and batch identity
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("pass_id", passID).Msg("reconciliation started")
//
// Add pass context to a logger:
//
//	logger = observability.WithPassContext(logger, passID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("refenrich")
//
// Record metrics:
//
//	metrics.RecordPassStarted()
//	metrics.RecordSearchCompleted("crossref", 5, 0.42)
//	metrics.RecordMergeOutcome("aggressive")
//
// # Context Helpers
//
// Store and retrieve pass identity:
//
//	ctx = observability.WithPassID(ctx, passID)
//	passID := observability.PassIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - pass_id: Reconciliation pass identifier
//   - batch_id: Batch run identifier
//   - reference_index: Index of a reference within its batch
//   - source: Bibliographic source (crossref, openalex, etc.)
//   - strategy: Query strategy name
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
