// Package storage provides run record storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: In-memory, for single-process deployments and tests
package storage
