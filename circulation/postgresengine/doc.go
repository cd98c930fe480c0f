// Package postgresengine implements the library circulation engine on
// PostgreSQL.
//
// The Engine owns a database adapter (pgx pool, database/sql, or sqlx) and
// exposes the functional areas as views: Settings, Inventory, Loans, Fines,
// Notifications, Reports, Circulation, and Admin. SQL statements are built
// with goqu and executed with all values inlined.
//
// Concurrency control works without in-process locks: every state transition
// is a conditional UPDATE whose WHERE clause re-checks the business rule, and
// every multi-statement operation runs in one database transaction. A
// transition that affects zero rows lost a race and surfaces as a typed
// sentinel error (circulation.ErrConcurrencyConflict,
// circulation.ErrAlreadyReturned, and friends) instead of corrupting counts.
//
// Logging, metrics, and tracing collectors are optional; see the options in
// options.go and the interfaces in the circulation package.
package postgresengine
