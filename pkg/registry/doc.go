// Package registry persists container metadata and orchestrates lifecycle
// transitions.
//
// The Store keeps container records in a SQLite database with embedded
// schema migrations. The Registry layers create/clone/remove and start/stop
// orchestration over the store: port allocation and conflict resolution,
// liveness checks against the supervisor, and the persisted status cache.
//
// The persisted status column is a cache only. Liveness is always decided by
// the supervisor at read time, so containers killed out of band never appear
// running.
package registry
