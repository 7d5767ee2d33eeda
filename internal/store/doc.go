// Package store provides the SQLite-backed transactional context that the
// client adapter and the server consolidation engine write through.
//
// The package exposes:
//   - Store: an opened database with the required pragmas applied
//   - Tx: one transaction, committed by Complete and rolled back by Close
//   - TxContext: the port client and server code depend on
//   - Query / QueryFirst: typed row mapping, one RowMapper per query
//
// # Name Folding
//
// Every dimension name column is declared COLLATE FOLD. The FOLD collation is
// installed on each connection by the sqlite3_featlog driver and compares
// names through Fold, the same function the in-memory caches key on. The
// uniqueness constraint and the caches therefore never disagree about
// whether "Login" and "LOGIN" are the same name.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
