// Package server consolidates client telemetry stores into one shared
// server store.
//
// # Replication
//
// Client and server generate ids independently. A run remaps every
// foreign key of a client snapshot in dependency order:
//
//	user -> contextMap -> stepMap -> featureMap -> featureEntryMap
//	                                   |               |
//	                                   v               v
//	                           exception entries  feature entry steps
//
// Dimension rows (users, versions, contexts, steps, features) are found or
// created by folded name; features are keyed by their server context so
// equally named features of different contexts stay distinct. Fact rows
// are always inserted and stamped with the replicating user.
//
// # Delivery
//
// Replicate is not idempotent for facts. A snapshot replicated twice is
// counted twice. The replications table records every run so that such
// duplicates can be traced to a run id.
package server
