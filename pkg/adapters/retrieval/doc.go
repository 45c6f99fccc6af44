// Package retrieval provides ports.Retriever implementations.
//
// Implementations:
//   - HTTPRetriever: client for an external retrieval service
//   - StaticRetriever: fixed passages loaded from YAML, for local runs
package retrieval
