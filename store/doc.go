// Package store wraps the subset of the DynamoDB client that the arbor
// mapper consumes: point reads, batched reads, single query/scan pages,
// puts and deletes.
//
// The package deliberately stays thin. It owns no caching, no retries and
// no pagination loops beyond what the service protocol itself requires
// (BatchGetItem request chunking and UnprocessedKeys draining). Errors
// from the client are wrapped once for context and otherwise surfaced
// unchanged.
//
// Store accepts any implementation of [DynamoAPI]. The interface mirrors
// the method signatures of the aws-sdk-go-v2 *dynamodb.Client, so the real
// client satisfies it directly and tests can substitute a fake.
package store
