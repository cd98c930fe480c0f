// Package adapters provides database adapter implementations for the
// circulation engine's Postgres backend.
//
// The package defines small interfaces (DBAdapter, DBHandle, DBTx, DBRows,
// DBResult) that abstract over different Postgres client libraries, and the
// concrete adapters for pgx pools, database/sql, and sqlx. Store code builds
// its SQL upfront with all values inlined, so the interfaces carry only the
// final query string.
//
// The pgx adapter optionally routes read queries to a replica pool when the
// request context selects eventually consistent reads. Writes and
// transactions always use the primary pool.
package adapters
