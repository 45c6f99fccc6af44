// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams, every subscriber reads the stream independently
//   - memory: In-memory synchronous fan-out, for single-process deployments
//     and tests
package events
