package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation/postgresengine"
	"github.com/shelfwise/library-circulation-go/testutil/postgresengine/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper interface to abstract over different engine types
type Wrapper interface {
	GetEngine() *postgresengine.Engine
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine *postgresengine.Engine
}

func (w *PGXPoolWrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db     *sql.DB
	engine *postgresengine.Engine
}

func (w *SQLDBWrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db     *sqlx.DB
	engine *postgresengine.Engine
}

func (w *SQLXWrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SkipUnlessLiveDB skips the test when no live test database is configured.
func SkipUnlessLiveDB(t testing.TB) {
	if os.Getenv(config.TestDSNEnvVar) == "" {
		t.Skipf("skipping live database test: %s is not set", config.TestDSNEnvVar)
	}
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the ADAPTER_TYPE environment variable.
// It skips the calling test when no live test database is configured.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	SkipUnlessLiveDB(t)

	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		engine, err := postgresengine.NewEngineFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating circulation engine")

		return &PGXPoolWrapper{pool: connPool, engine: engine}

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating circulation engine")

		return &SQLDBWrapper{db: db, engine: engine}

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		assert.NoError(t, err, "error creating circulation engine")

		return &SQLXWrapper{db: db, engine: engine}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// schemaStatements creates the circulation schema from scratch.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		book_id          TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		category         TEXT NOT NULL DEFAULT '',
		total_copies     INTEGER NOT NULL,
		available_copies INTEGER NOT NULL CHECK (available_copies >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		student_id TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		name       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS issued_books (
		issue_id      BIGSERIAL PRIMARY KEY,
		book_id       TEXT NOT NULL,
		student_id    TEXT NOT NULL,
		issue_date    TIMESTAMPTZ NOT NULL,
		due_date      TIMESTAMPTZ NOT NULL,
		return_date   TIMESTAMPTZ NULL,
		status        TEXT NOT NULL,
		reissue_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS fines (
		fine_id     BIGSERIAL PRIMARY KEY,
		student_id  TEXT NOT NULL,
		issue_id    BIGINT NOT NULL,
		fine_amount DOUBLE PRECISION NOT NULL,
		fine_date   TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key   TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		notification_id UUID PRIMARY KEY,
		user_id         TEXT NOT NULL,
		message         TEXT NOT NULL,
		type            TEXT NOT NULL,
		meta            JSONB NOT NULL DEFAULT '{}',
		is_read         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		status        TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS librarians (
		librarian_id TEXT PRIMARY KEY,
		username     TEXT NOT NULL,
		name         TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS book_requests (
		request_id   BIGSERIAL PRIMARY KEY,
		student_id   TEXT NOT NULL,
		title        TEXT NOT NULL,
		author       TEXT NOT NULL DEFAULT '',
		reason       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		request_date TIMESTAMPTZ NOT NULL
	)`,
}

var circulationTables = []string{
	"books", "students", "issued_books", "fines", "settings", "notifications", "users", "librarians",
	"book_requests",
}

// CreateSchema creates all circulation tables for the given wrapper.
func CreateSchema(t testing.TB, wrapper Wrapper) {
	for _, stmt := range schemaStatements {
		Exec(t, wrapper, stmt)
	}
}

// CleanUp truncates all circulation tables for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", strings.Join(circulationTables, ", "))
	Exec(t, wrapper, query)
}

// Exec executes a statement against the underlying database for the given wrapper.
func Exec(t testing.TB, wrapper Wrapper, query string) {
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err = w.pool.Exec(context.Background(), query)

	case *SQLDBWrapper:
		_, err = w.db.Exec(query)

	case *SQLXWrapper:
		_, err = w.db.Exec(query)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error executing statement in test setup")
}

// QueryRow executes a single-row query against the underlying database and scans the result into dest.
func QueryRow(t testing.TB, wrapper Wrapper, query string, dest ...any) {
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		row := w.pool.QueryRow(context.Background(), query)
		err = row.Scan(dest...)

	case *SQLDBWrapper:
		row := w.db.QueryRow(query)
		err = row.Scan(dest...)

	case *SQLXWrapper:
		row := w.db.QueryRow(query)
		err = row.Scan(dest...)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error in arranging test data")
}

// GivenBookInCirculation inserts a book row with the given copy counts.
func GivenBookInCirculation(t testing.TB, wrapper Wrapper, bookID, title string, totalCopies, availableCopies int) {
	query := fmt.Sprintf(
		`INSERT INTO books (book_id, title, author, category, total_copies, available_copies)
		 VALUES ('%s', '%s', 'Vlad Khononov', 'Software Design', %d, %d)`,
		bookID, title, totalCopies, availableCopies)
	Exec(t, wrapper, query)
}

// GivenRegisteredStudent inserts a student row.
func GivenRegisteredStudent(t testing.TB, wrapper Wrapper, studentID, username, name string) {
	query := fmt.Sprintf(
		`INSERT INTO students (student_id, username, name) VALUES ('%s', '%s', '%s')`,
		studentID, username, name)
	Exec(t, wrapper, query)
}

// GivenIssuedLoan inserts a loan row and returns its issue ID.
func GivenIssuedLoan(t testing.TB, wrapper Wrapper, bookID, studentID string, issueDate, dueDate time.Time, status string) int64 {
	query := fmt.Sprintf(
		`INSERT INTO issued_books (book_id, student_id, issue_date, due_date, status, reissue_count)
		 VALUES ('%s', '%s', '%s', '%s', '%s', 0) RETURNING issue_id`,
		bookID, studentID, issueDate.Format(time.RFC3339Nano), dueDate.Format(time.RFC3339Nano), status)

	var issueID int64
	QueryRow(t, wrapper, query, &issueID)

	return issueID
}

// GivenUnpaidFine inserts an unpaid fine row and returns its fine ID.
func GivenUnpaidFine(t testing.TB, wrapper Wrapper, studentID string, issueID int64, amount float64) int64 {
	query := fmt.Sprintf(
		`INSERT INTO fines (student_id, issue_id, fine_amount, fine_date, status)
		 VALUES ('%s', %d, %f, now(), 'Unpaid') RETURNING fine_id`,
		studentID, issueID, amount)

	var fineID int64
	QueryRow(t, wrapper, query, &fineID)

	return fineID
}

// GivenSetting upserts a settings row.
func GivenSetting(t testing.TB, wrapper Wrapper, key, value string) {
	query := fmt.Sprintf(
		`INSERT INTO settings (setting_key, setting_value) VALUES ('%s', '%s')
		 ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`,
		key, value)
	Exec(t, wrapper, query)
}

// GetAvailableCopies reads the current available copy count for a book.
func GetAvailableCopies(t testing.TB, wrapper Wrapper, bookID string) int {
	var available int
	QueryRow(t, wrapper, fmt.Sprintf(
		`SELECT available_copies FROM books WHERE book_id = '%s'`, bookID), &available)

	return available
}

// CountUnpaidFines counts unpaid fines for a loan.
func CountUnpaidFines(t testing.TB, wrapper Wrapper, issueID int64) int {
	var cnt int
	QueryRow(t, wrapper, fmt.Sprintf(
		`SELECT count(*) FROM fines WHERE issue_id = %d AND status = 'Unpaid'`, issueID), &cnt)

	return cnt
}
