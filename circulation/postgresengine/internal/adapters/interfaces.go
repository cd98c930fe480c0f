package adapters

import "context"

// DBHandle defines the query surface shared by pooled connections and open
// transactions. Store methods accept a DBHandle so they run unchanged inside
// or outside a transaction.
type DBHandle interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the circulation engine.
type DBAdapter interface {
	DBHandle
	BeginTx(ctx context.Context) (DBTx, error)
}

// DBTx is an open transaction. Rollback after a successful Commit is a no-op
// so callers can keep the deferred-rollback pattern.
type DBTx interface {
	DBHandle
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
