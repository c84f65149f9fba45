/*
Package ports defines the driven ports (interfaces) for the Dialogic engine.

These interfaces decouple the realization core from external implementations,
allowing the engine to work with various template sources and session
storage backends.

# Key Interfaces

  - CatalogLoader: Loads the template catalog (e.g., from a directory or memory).
  - Watchable: Signals changes in the template source for hot reload.
  - SessionStore: Persists and loads conversation sessions (history and context).
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
