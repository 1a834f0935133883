// Package mapper provides an identity-preserving data-access layer over a
// DynamoDB table: a read cache with single-flight fetches per logical key,
// and a unit-of-work tracker that persists exactly the changes that
// occurred since read time.
//
// # Reads
//
// Every read path is memoized by logical key. The first caller for an
// uncached key installs the pending fetch; concurrent callers for the same
// key await that same fetch and every caller receives the same entity
// instance. [Repository.GetBatch] deduplicates keys by value and issues
// one batched read for the uncached subset. [Repository.Search] wraps
// query/scan pagination in a pull-based [Iterator] and reconciles each
// pulled item against the cache, re-fetching full items when read through
// a partially projected index.
//
// # Writes
//
// Entities surfacing from reads are tracked as update candidates with a
// serialized snapshot taken at read time. [Repository.Create] tracks a new
// entity for unconditional persistence; [Repository.Delete] marks one for
// deletion (and cancels a pending create outright). [Repository.Flush]
// diffs each update candidate against its snapshot and issues the minimal
// set of puts and deletes concurrently, waiting for all of them to settle
// before reporting.
//
// # Configuration
//
//	cfg := mapper.Config{
//	    TableName: "orders",
//	    Schema:    mapper.KeySchema{Hash: "id"},
//	}
//	repo, err := mapper.New[Order](client, cfg)
//
// Configs can also be loaded from YAML with [LoadConfig]. The key schema
// requires exactly one hash attribute and permits one range attribute;
// construction fails with [ErrMissingHashKey] otherwise.
//
// # Notifications
//
// A [Hooks] value observes cache key collisions and per-operation flush
// failures. There is no retry anywhere in the package: store errors
// surface to the caller unchanged, and a failed flush reports a
// [FlushError] only after every dispatched operation has settled.
package mapper
