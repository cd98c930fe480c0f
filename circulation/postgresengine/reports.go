package postgresengine

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
)

const (
	colStudentUsername = "username"
	colStudentName     = "name"

	logActionListBooks    = "list books"
	logActionOpenLoans    = "list open loans"
	logActionOverdueLoans = "list overdue loans"
	logActionListStudents = "list students"
)

// Reports provides the read-only queries behind the dashboards. All queries
// honor the consistency level carried in the context: with a replica pool
// configured, eventual-consistency reads are served from the replica.
type Reports struct {
	engine *Engine
}

// OpenLoan is one row of the open-loans report: the loan joined with its book
// title and student name.
type OpenLoan struct {
	circulation.LoanRecord
	BookTitle   string
	StudentName string
}

// AvailableBooks lists books with at least one available copy, optionally
// filtered by a case-insensitive substring match on title, author, or
// category.
func (r Reports) AvailableBooks(ctx context.Context, search string) ([]circulation.Book, error) {
	return r.listBooks(ctx, search, true)
}

// AllBooks lists every book in the inventory, optionally filtered like
// AvailableBooks.
func (r Reports) AllBooks(ctx context.Context, search string) ([]circulation.Book, error) {
	return r.listBooks(ctx, search, false)
}

func (r Reports) listBooks(ctx context.Context, search string, onlyAvailable bool) ([]circulation.Book, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(r.engine.tables.Books).
		Select(colBookID, colTitle, colAuthor, colCategory, colTotalCopies, colAvailableCopies).
		Order(goqu.C(colBookID).Asc())

	if onlyAvailable {
		stmt = stmt.Where(goqu.C(colAvailableCopies).Gt(0))
	}

	if search != "" {
		pattern := "%" + search + "%"
		stmt = stmt.Where(goqu.Or(
			goqu.C(colTitle).ILike(pattern),
			goqu.C(colAuthor).ILike(pattern),
			goqu.C(colCategory).ILike(pattern),
		))
	}

	sqlQuery, _, buildErr := stmt.ToSQL()
	if buildErr != nil {
		r.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := r.engine.executeQuery(ctx, r.engine.db, sqlQuery, logActionListBooks)
	if queryErr != nil {
		return nil, queryErr
	}
	defer r.engine.closeRows(ctx, rows)

	books := make([]circulation.Book, 0)

	for rows.Next() {
		var book circulation.Book

		scanErr := rows.Scan(
			&book.BookID, &book.Title, &book.Author, &book.Category,
			&book.TotalCopies, &book.AvailableCopies,
		)
		if scanErr != nil {
			r.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		books = append(books, book)
	}

	return books, nil
}

// OpenLoans lists all loans that have not been returned, joined with book
// title and student name, optionally filtered by a case-insensitive substring
// match on either.
func (r Reports) OpenLoans(ctx context.Context, search string) ([]OpenLoan, error) {
	stmt := r.loanJoinQuery().
		Where(goqu.T(r.engine.tables.IssuedBooks).Col(colLoanStatus).
			In(string(circulation.StatusIssued), string(circulation.StatusOverdue)))

	if search != "" {
		pattern := "%" + search + "%"
		stmt = stmt.Where(goqu.Or(
			goqu.T(r.engine.tables.Books).Col(colTitle).ILike(pattern),
			goqu.T(r.engine.tables.Students).Col(colStudentName).ILike(pattern),
		))
	}

	return r.queryOpenLoans(ctx, stmt, logActionOpenLoans)
}

// OverdueLoans lists all open loans whose due date lies before asOf,
// regardless of whether the stored status has caught up with the overdue
// condition. The due date is compared at calendar-date precision, matching
// DaysOverdue, so a loan due later the same day is not reported.
func (r Reports) OverdueLoans(ctx context.Context, asOf time.Time) ([]OpenLoan, error) {
	stmt := r.loanJoinQuery().
		Where(
			goqu.T(r.engine.tables.IssuedBooks).Col(colLoanStatus).
				In(string(circulation.StatusIssued), string(circulation.StatusOverdue)),
			goqu.T(r.engine.tables.IssuedBooks).Col(colDueDate).Lt(circulation.TruncateToDate(asOf)),
		)

	return r.queryOpenLoans(ctx, stmt, logActionOverdueLoans)
}

// StudentFineHistory returns all fines of one student, newest first, settled
// and outstanding alike.
func (r Reports) StudentFineHistory(ctx context.Context, studentID string) ([]circulation.Fine, error) {
	return r.engine.Fines().listFines(ctx, r.engine.db, goqu.Ex{colStudentID: studentID})
}

// MonthlyFineTotal returns the total fine amount accrued in the given month.
func (r Reports) MonthlyFineTotal(ctx context.Context, year int, month time.Month) (float64, error) {
	return r.engine.Fines().SumByMonth(ctx, year, month)
}

// AllStudents lists registered students, optionally filtered by a
// case-insensitive substring match on id, username, or name.
func (r Reports) AllStudents(ctx context.Context, search string) ([]circulation.Student, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(r.engine.tables.Students).
		Select(colStudentID, colStudentUsername, colStudentName).
		Order(goqu.C(colStudentID).Asc())

	if search != "" {
		pattern := "%" + search + "%"
		stmt = stmt.Where(goqu.Or(
			goqu.C(colStudentID).ILike(pattern),
			goqu.C(colStudentUsername).ILike(pattern),
			goqu.C(colStudentName).ILike(pattern),
		))
	}

	sqlQuery, _, buildErr := stmt.ToSQL()
	if buildErr != nil {
		r.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := r.engine.executeQuery(ctx, r.engine.db, sqlQuery, logActionListStudents)
	if queryErr != nil {
		return nil, queryErr
	}
	defer r.engine.closeRows(ctx, rows)

	students := make([]circulation.Student, 0)

	for rows.Next() {
		var student circulation.Student

		if scanErr := rows.Scan(&student.StudentID, &student.Username, &student.Name); scanErr != nil {
			r.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		students = append(students, student)
	}

	return students, nil
}

func (r Reports) loanJoinQuery() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(r.engine.tables.IssuedBooks).
		Join(
			goqu.T(r.engine.tables.Books),
			goqu.On(goqu.L("?.? = ?.?",
				goqu.T(r.engine.tables.IssuedBooks), goqu.C(colLoanBookID),
				goqu.T(r.engine.tables.Books), goqu.C(colBookID))),
		).
		Join(
			goqu.T(r.engine.tables.Students),
			goqu.On(goqu.L("?.? = ?.?",
				goqu.T(r.engine.tables.IssuedBooks), goqu.C(colStudentID),
				goqu.T(r.engine.tables.Students), goqu.C(colStudentID))),
		).
		Select(
			goqu.T(r.engine.tables.IssuedBooks).Col(colIssueID),
			goqu.T(r.engine.tables.IssuedBooks).Col(colLoanBookID),
			goqu.T(r.engine.tables.IssuedBooks).Col(colStudentID),
			goqu.T(r.engine.tables.IssuedBooks).Col(colIssueDate),
			goqu.T(r.engine.tables.IssuedBooks).Col(colDueDate),
			goqu.T(r.engine.tables.IssuedBooks).Col(colReturnDate),
			goqu.T(r.engine.tables.IssuedBooks).Col(colLoanStatus),
			goqu.T(r.engine.tables.IssuedBooks).Col(colReissueCount),
			goqu.T(r.engine.tables.Books).Col(colTitle),
			goqu.T(r.engine.tables.Students).Col(colStudentName),
		).
		Order(goqu.T(r.engine.tables.IssuedBooks).Col(colIssueID).Desc())
}

func (r Reports) queryOpenLoans(ctx context.Context, stmt *goqu.SelectDataset, action string) ([]OpenLoan, error) {
	sqlQuery, _, buildErr := stmt.ToSQL()
	if buildErr != nil {
		r.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := r.engine.executeQuery(ctx, r.engine.db, sqlQuery, action)
	if queryErr != nil {
		return nil, queryErr
	}
	defer r.engine.closeRows(ctx, rows)

	loans := make([]OpenLoan, 0)

	for rows.Next() {
		var loan OpenLoan
		var returnDate sql.NullTime

		scanErr := rows.Scan(
			&loan.IssueID, &loan.BookID, &loan.StudentID,
			&loan.IssueDate, &loan.DueDate, &returnDate,
			&loan.Status, &loan.ReissueCount,
			&loan.BookTitle, &loan.StudentName,
		)
		if scanErr != nil {
			r.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		if returnDate.Valid {
			loan.ReturnDate = &returnDate.Time
		}

		loans = append(loans, loan)
	}

	return loans, nil
}
