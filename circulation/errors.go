package circulation

import (
	"errors"
)

// Business rule violations. These are returned (never panicked) by the storage
// engine and tested with errors.Is by callers.
var (
	ErrBookNotFound       = errors.New("book not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrLoanNotFound       = errors.New("no active loan found for this book and student")
	ErrBookNotAvailable   = errors.New("book is not available for borrowing")
	ErrAlreadyReturned    = errors.New("book has already been returned")
	ErrLoanNotActive      = errors.New("loan is not in an active state")
	ErrHasUnpaidFine      = errors.New("loan has an outstanding unpaid fine")
	ErrMaxReissuesReached = errors.New("maximum reissue limit reached")
	ErrLoanOverdue        = errors.New("loan is overdue and cannot be reissued")
	ErrBookStillIssued    = errors.New("book cannot be removed while copies are on loan")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrLibrarianNotFound  = errors.New("librarian not found")
)

// ErrConcurrencyConflict is returned when a conditional update affected zero
// rows because a concurrent transaction won the race.
var ErrConcurrencyConflict = errors.New("concurrency conflict, no rows were affected")

// ErrStorageFailure wraps any infrastructure-level data access failure.
// The driver error is attached with errors.Join.
var ErrStorageFailure = errors.New("storage failure")

// Configuration errors returned by the engine constructors and options.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("table name must not be empty")
)
