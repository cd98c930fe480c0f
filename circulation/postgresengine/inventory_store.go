package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	colBookID          = "book_id"
	colTitle           = "title"
	colAuthor          = "author"
	colCategory        = "category"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"

	logActionFindBook       = "find book"
	logActionMaxBookID      = "max book id"
	logActionInsertBook     = "insert book"
	logActionUpdateBook     = "update book"
	logActionDeleteBook     = "delete book"
	logActionDecrementAvail = "decrement availability"
	logActionIncrementAvail = "increment availability"
)

// InventoryLedger manages book records and their copy counts.
//
// Availability changes go through conditional updates so that concurrent
// transactions can never push available_copies below zero or above
// total_copies; the losing side of a race sees zero affected rows.
type InventoryLedger struct {
	engine *Engine
}

// FindBook loads one book by id. Returns circulation.ErrBookNotFound when no
// such book exists.
func (l InventoryLedger) FindBook(ctx context.Context, bookID string) (circulation.Book, error) {
	return l.findBook(ctx, l.engine.db, bookID)
}

// FindAvailability returns the available and total copy counts for a book.
// Returns circulation.ErrBookNotFound when no such book exists.
func (l InventoryLedger) FindAvailability(ctx context.Context, bookID string) (available int, total int, err error) {
	book, err := l.findBook(ctx, l.engine.db, bookID)
	if err != nil {
		return 0, 0, err
	}

	return book.AvailableCopies, book.TotalCopies, nil
}

// AddBook registers a new title with the given number of copies, all of them
// available. The book id is generated from the highest existing id; the
// generation and the insert run in one transaction so concurrent additions
// cannot allocate the same id.
func (l InventoryLedger) AddBook(ctx context.Context, title, author, category string, copies int) (circulation.Book, error) {
	var book circulation.Book

	txErr := l.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		lastID, findErr := l.maxBookID(ctx, dbh)
		if findErr != nil {
			return findErr
		}

		book = circulation.Book{
			BookID:          circulation.NextSequentialID(circulation.BookIDPrefix, lastID),
			Title:           title,
			Author:          author,
			Category:        category,
			TotalCopies:     copies,
			AvailableCopies: copies,
		}

		return l.insertBook(ctx, dbh, book)
	})
	if txErr != nil {
		return circulation.Book{}, txErr
	}

	l.engine.logOperation(ctx, "book added", logAttrBookID, book.BookID)

	return book, nil
}

// UpdateBook changes a book's descriptive fields and its total copy count.
// A change of the total adjusts the available count by the same delta; the
// update is rejected when that would make the available count negative.
// Returns circulation.ErrBookNotFound when no row was updated.
func (l InventoryLedger) UpdateBook(ctx context.Context, bookID, title, author, category string, totalCopies int) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(l.engine.tables.Books).
		Set(goqu.Record{
			colTitle:           title,
			colAuthor:          author,
			colCategory:        category,
			colAvailableCopies: goqu.L("? + ? - ?", goqu.C(colAvailableCopies), totalCopies, goqu.C(colTotalCopies)),
			colTotalCopies:     totalCopies,
		}).
		Where(
			goqu.Ex{colBookID: bookID},
			goqu.L("? + ? - ? >= 0", goqu.C(colAvailableCopies), totalCopies, goqu.C(colTotalCopies)),
		).
		ToSQL()
	if buildErr != nil {
		l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID)

		return buildErr
	}

	rowsAffected, _, execErr := l.engine.executeStatement(ctx, l.engine.db, sqlQuery, logActionUpdateBook)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return circulation.ErrBookNotFound
	}

	return nil
}

// RemoveBook deletes a book from the inventory. The removal is rejected with
// circulation.ErrBookStillIssued while any copy is on loan. The delete itself
// re-checks the copy counts so a concurrently issued copy turns the removal
// into circulation.ErrConcurrencyConflict instead of losing the loan.
func (l InventoryLedger) RemoveBook(ctx context.Context, bookID string) error {
	removeErr := l.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		book, findErr := l.findBook(ctx, dbh, bookID)
		if findErr != nil {
			return findErr
		}

		if book.HasOpenLoans() {
			return circulation.ErrBookStillIssued
		}

		sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
			Delete(l.engine.tables.Books).
			Where(
				goqu.Ex{colBookID: bookID},
				goqu.L("? = ?", goqu.C(colAvailableCopies), goqu.C(colTotalCopies)),
			).
			ToSQL()
		if buildErr != nil {
			l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID)

			return buildErr
		}

		rowsAffected, _, execErr := l.engine.executeStatement(ctx, dbh, sqlQuery, logActionDeleteBook)
		if execErr != nil {
			return execErr
		}

		if rowsAffected == 0 {
			l.engine.logOperation(ctx, logMsgConflict, logAttrBookID, bookID)
			l.engine.recordConflictMetrics(ctx, logActionDeleteBook)

			return circulation.ErrConcurrencyConflict
		}

		return nil
	})
	if removeErr != nil {
		return removeErr
	}

	l.engine.logOperation(ctx, "book removed", logAttrBookID, bookID)

	return nil
}

func (l InventoryLedger) findBook(ctx context.Context, dbh adapters.DBHandle, bookID string) (circulation.Book, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(l.engine.tables.Books).
		Select(colBookID, colTitle, colAuthor, colCategory, colTotalCopies, colAvailableCopies).
		Where(goqu.Ex{colBookID: bookID}).
		ToSQL()
	if buildErr != nil {
		l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID)

		return circulation.Book{}, buildErr
	}

	rows, _, queryErr := l.engine.executeQuery(ctx, dbh, sqlQuery, logActionFindBook)
	if queryErr != nil {
		return circulation.Book{}, queryErr
	}
	defer l.engine.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	var book circulation.Book
	if scanErr := rows.Scan(
		&book.BookID, &book.Title, &book.Author, &book.Category,
		&book.TotalCopies, &book.AvailableCopies,
	); scanErr != nil {
		l.engine.logError(ctx, logMsgScanRowFailed, scanErr, logAttrBookID, bookID)

		return circulation.Book{}, scanErr
	}

	return book, nil
}

// maxBookID returns the highest existing book id, or "" for an empty table.
func (l InventoryLedger) maxBookID(ctx context.Context, dbh adapters.DBHandle) (string, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(l.engine.tables.Books).
		Select(goqu.COALESCE(goqu.MAX(colBookID), "")).
		ToSQL()
	if buildErr != nil {
		l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return "", buildErr
	}

	rows, _, queryErr := l.engine.executeQuery(ctx, dbh, sqlQuery, logActionMaxBookID)
	if queryErr != nil {
		return "", queryErr
	}
	defer l.engine.closeRows(ctx, rows)

	var lastID string
	if rows.Next() {
		if scanErr := rows.Scan(&lastID); scanErr != nil {
			l.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return "", scanErr
		}
	}

	return lastID, nil
}

func (l InventoryLedger) insertBook(ctx context.Context, dbh adapters.DBHandle, book circulation.Book) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(l.engine.tables.Books).
		Cols(colBookID, colTitle, colAuthor, colCategory, colTotalCopies, colAvailableCopies).
		Vals(goqu.Vals{book.BookID, book.Title, book.Author, book.Category, book.TotalCopies, book.AvailableCopies}).
		ToSQL()
	if buildErr != nil {
		l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, book.BookID)

		return buildErr
	}

	_, _, execErr := l.engine.executeStatement(ctx, dbh, sqlQuery, logActionInsertBook)

	return execErr
}

// decrementAvailable takes one copy out of the available pool. The condition
// available_copies > 0 makes the losing side of a last-copy race affect zero
// rows; the caller maps that to the proper business error.
func (l InventoryLedger) decrementAvailable(ctx context.Context, dbh adapters.DBHandle, bookID string) (int64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(l.engine.tables.Books).
		Set(goqu.Record{colAvailableCopies: goqu.L("? - 1", goqu.C(colAvailableCopies))}).
		Where(
			goqu.Ex{colBookID: bookID},
			goqu.C(colAvailableCopies).Gt(0),
		).
		ToSQL()
	if buildErr != nil {
		l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID)

		return 0, buildErr
	}

	rowsAffected, _, execErr := l.engine.executeStatement(ctx, dbh, sqlQuery, logActionDecrementAvail)
	if execErr != nil {
		return 0, execErr
	}

	return rowsAffected, nil
}

// incrementAvailable puts one copy back into the available pool. Zero
// affected rows is not an error here: the book may have been removed while
// the copy was on loan, which only warrants a warning.
func (l InventoryLedger) incrementAvailable(ctx context.Context, dbh adapters.DBHandle, bookID string) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(l.engine.tables.Books).
		Set(goqu.Record{colAvailableCopies: goqu.L("? + 1", goqu.C(colAvailableCopies))}).
		Where(
			goqu.Ex{colBookID: bookID},
			goqu.L("? < ?", goqu.C(colAvailableCopies), goqu.C(colTotalCopies)),
		).
		ToSQL()
	if buildErr != nil {
		l.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID)

		return buildErr
	}

	rowsAffected, _, execErr := l.engine.executeStatement(ctx, dbh, sqlQuery, logActionIncrementAvail)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		l.engine.logWarn(ctx, logMsgIncrementLost, logAttrBookID, bookID)
	}

	return nil
}
