// Package client persists captured features into a client's local store.
//
// The client store holds six tables: three dimensions (contexts, steps,
// features) and three append-only fact tables (feature_entries,
// feature_entry_steps, exception_entries). Manager writes them inside the
// caller's transaction; ReadSnapshot reads them back for replication and
// Truncate clears the facts once the server holds them.
package client
