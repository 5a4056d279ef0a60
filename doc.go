// Package nebula is an incremental extraction connector for the GoCardless
// payments API.
//
// # Architecture
//
// A sync moves each selected stream from the GoCardless source into a
// JSON-lines sink, then checkpoints the stream's cursor:
//
//	gocardless source ──records──▶ sync runner ──▶ jsonl destination
//	        ▲                           │
//	        └──── saved state ◀── state store (file, sqlite, postgres, redis, s3)
//
// The source pages through list endpoints by following meta.cursors.after
// with a fixed page size of 500. Incremental streams filter on
// created_at[gte], starting from the later of the configured start date and
// the saved cursor, less an optional lookback window.
//
// # Packages
//
//   - cmd/gocardless: the CLI (spec, check, discover, read, version)
//   - internal/pipeline: the sync runner
//   - pkg/connector/sources/gocardless: streams, cursor handling and the source
//   - pkg/connector/httpstream: the page loop shared by HTTP streams
//   - pkg/connector/destinations/jsonl: the record and state sink
//   - pkg/state: state stores keyed by stream name
//   - pkg/clients: HTTP client with rate limiting and a circuit breaker
//
// # Usage
//
//	gocardless check --config sync.yaml
//	gocardless read --config sync.yaml --streams payments,payment_events > out.jsonl
package nebula
