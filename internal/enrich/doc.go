// Package enrich implements the reference reconciliation pipeline: query
// strategy building, concurrent retrieval from bibliographic sources,
// candidate matching, multi-source adjudication, and score-gated merging.
//
// # Overview
//
// A reconciliation pass takes a parsed reference and returns an enriched
// copy:
//
//	svc := enrich.NewService(enrich.ServiceConfig{
//	    Registry: registry,
//	    Policy:   enrich.DefaultPolicy(),
//	    Cache:    enrich.NewLRUCache(10000, 24*time.Hour),
//	    Logger:   logger,
//	    Metrics:  metrics,
//	})
//
//	enriched := svc.Enrich(ctx, ref, originalText, enrich.DefaultOptions())
//
// The pass is best-effort end to end: source failures, zero candidates, and
// rejected matches all degrade to the unchanged record with
// APIEnrichmentUsed false, never to an error.
//
// # Pipeline
//
//   - BuildQueries derives ordered search strategies from the parsed fields
//   - Orchestrator triages sources and fans each strategy out concurrently
//   - Matcher picks at most one candidate per source via blocking and a
//     composite similarity score
//   - Adjudicator resolves per-field disagreements between sources
//   - Merger applies external data under the score-gated band policy
//
// # Batches
//
// EnrichBatch reconciles many references concurrently under a fixed
// concurrency cap, ordering work so the most incomplete references go first
// and isolating per-reference failures.
package enrich
