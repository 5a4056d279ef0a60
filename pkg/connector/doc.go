// Package connector holds the connector framework and its implementations.
//
// # Layout
//
//   - core: the Source and Destination contracts, State, Catalog and
//     RecordStream.
//
//   - base: BaseConnector, embedded by connectors for per-stream state,
//     health checks, retry with exponential backoff and error accounting.
//
//   - httpstream: the Stream contract for paginated HTTP resources and the
//     Reader that drives them page by page.
//
//   - registry: factories and catalog entries, registered from each
//     connector's init.
//
//   - sources/gocardless: the GoCardless payments API source.
//
//   - destinations/jsonl: writes RECORD and STATE messages as JSON lines.
//
// # Creating connectors
//
// Connectors are created through the registry so that a config document
// can select them by type:
//
//	src, err := registry.CreateSource("gocardless", cfg)
//	if err != nil {
//	    return err
//	}
//	if err := src.Initialize(ctx, cfg); err != nil {
//	    return err
//	}
//
// A stream read ends when both channels of the RecordStream close. The
// final cursor is then available from GetState.
package connector
