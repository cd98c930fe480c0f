package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const dialectPostgres = "postgres"

// TableNames holds the names of the tables the engine reads and writes.
// All names have sensible defaults and can be overridden with WithTableNames.
type TableNames struct {
	Books         string
	Students      string
	IssuedBooks   string
	Fines         string
	Settings      string
	Notifications string
	Users         string
	Librarians    string
	BookRequests  string
}

func defaultTableNames() TableNames {
	return TableNames{
		Books:         "books",
		Students:      "students",
		IssuedBooks:   "issued_books",
		Fines:         "fines",
		Settings:      "settings",
		Notifications: "notifications",
		Users:         "users",
		Librarians:    "librarians",
		BookRequests:  "book_requests",
	}
}

// Engine is the PostgreSQL storage and orchestration engine for library
// circulation. It owns the database adapter and the cross-cutting concerns
// (logging, metrics, tracing, clock) and exposes the functional areas as
// views: Settings, Inventory, Loans, Fines, Notifications, Reports,
// Circulation, and Admin.
//
// All observability collaborators are optional; a nil collaborator disables
// that concern without any further configuration.
type Engine struct {
	db               adapters.DBAdapter
	tables           TableNames
	logger           circulation.Logger
	contextualLogger circulation.ContextualLogger
	metricsCollector circulation.MetricsCollector
	tracingCollector circulation.TracingCollector
	clock            func() time.Time
	hasher           circulation.CredentialHasher
	reissuePolicy    circulation.ReissuePolicy
}

// NewEngineFromPGXPool creates a new Engine using a pgx pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options...)
}

// NewEngineFromPGXPoolWithReplica creates a new Engine using a primary pgx
// pool and a replica pool. Reporting queries issued under an eventual
// consistency context are routed to the replica; all writes and transactional
// reads stay on the primary.
func NewEngineFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil || replica == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	engine := &Engine{
		db:            db,
		tables:        defaultTableNames(),
		clock:         time.Now,
		hasher:        circulation.NewBcryptHasher(),
		reissuePolicy: circulation.DefaultReissuePolicy(),
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// Settings returns the settings store view.
func (e *Engine) Settings() SettingsStore { return SettingsStore{engine: e} }

// Inventory returns the inventory ledger view.
func (e *Engine) Inventory() InventoryLedger { return InventoryLedger{engine: e} }

// Loans returns the loan record store view.
func (e *Engine) Loans() LoanStore { return LoanStore{engine: e} }

// Fines returns the fine ledger view.
func (e *Engine) Fines() FineLedger { return FineLedger{engine: e} }

// Notifications returns the notification store view.
func (e *Engine) Notifications() NotificationStore { return NotificationStore{engine: e} }

// Requests returns the book request view of the engine.
func (e *Engine) Requests() RequestStore { return RequestStore{engine: e} }

// Reports returns the reporting queries view.
func (e *Engine) Reports() Reports { return Reports{engine: e} }

// Circulation returns the circulation service view.
func (e *Engine) Circulation() CirculationService { return CirculationService{engine: e} }

// Admin returns the admin service view.
func (e *Engine) Admin() AdminService { return AdminService{engine: e} }

// executeQuery executes the SQL query on the given handle and returns rows
// with timing information.
func (e *Engine) executeQuery(ctx context.Context, dbh adapters.DBHandle, sqlQuery string, action string) (
	adapters.DBRows,
	time.Duration,
	error,
) {

	start := e.clock()
	rows, queryErr := dbh.Query(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if queryErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, duration, errors.Join(circulation.ErrStorageFailure, queryErr)
	}

	return rows, duration, nil
}

// executeStatement executes a SQL statement on the given handle and returns
// the affected row count with timing information.
func (e *Engine) executeStatement(ctx context.Context, dbh adapters.DBHandle, sqlQuery string, action string) (
	int64,
	time.Duration,
	error,
) {

	start := e.clock()
	result, execErr := dbh.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if execErr != nil {
		e.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return 0, duration, errors.Join(circulation.ErrStorageFailure, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		e.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, duration, errors.Join(circulation.ErrStorageFailure, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (e *Engine) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		e.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// withTransaction runs fn inside one database transaction. The transaction is
// rolled back when fn returns an error and committed otherwise. Business rule
// errors from fn pass through unchanged so callers can test them with
// errors.Is.
func (e *Engine) withTransaction(ctx context.Context, fn func(dbh adapters.DBHandle) error) error {
	tx, beginErr := e.db.BeginTx(ctx)
	if beginErr != nil {
		e.logError(ctx, logMsgBeginTxFailed, beginErr)

		return errors.Join(circulation.ErrStorageFailure, beginErr)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			e.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return fnErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		e.logError(ctx, logMsgCommitFailed, commitErr)

		return errors.Join(circulation.ErrStorageFailure, commitErr)
	}

	return nil
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (e *Engine) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
