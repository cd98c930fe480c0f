package postgresengine

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	colIssueID      = "issue_id"
	colLoanBookID   = "book_id"
	colStudentID    = "student_id"
	colIssueDate    = "issue_date"
	colDueDate      = "due_date"
	colReturnDate   = "return_date"
	colLoanStatus   = "status"
	colReissueCount = "reissue_count"

	logActionInsertLoan    = "insert loan"
	logActionFindLoan      = "find loan"
	logActionMarkReturned  = "mark returned"
	logActionExtendDueDate = "extend due date"
	logActionMarkOverdue   = "mark overdue"
	logActionStudentLoans  = "list student loans"
	logActionStudentExists = "student exists"
)

// LoanStore manages loan records: one row per issuance of one book copy to
// one student. Every status transition is a conditional update so that two
// racing transactions can never both apply the same transition.
type LoanStore struct {
	engine *Engine
}

// StudentLoan is one row of a student's borrowing list: the loan joined with
// the book title and whether an unpaid fine is attached.
type StudentLoan struct {
	circulation.LoanRecord
	BookTitle     string
	HasUnpaidFine bool
}

// FindLoan loads one loan record by its id. Returns
// circulation.ErrLoanNotFound when no such record exists.
func (s LoanStore) FindLoan(ctx context.Context, issueID int64) (circulation.LoanRecord, error) {
	return s.findLoan(ctx, s.engine.db, issueID)
}

// FindActiveLoan finds the open loan of the given book to the given student.
// Returns circulation.ErrLoanNotFound when the student has no open loan for
// that book.
func (s LoanStore) FindActiveLoan(ctx context.Context, bookID string, studentID string) (circulation.LoanRecord, error) {
	return s.findActiveLoan(ctx, s.engine.db, bookID, studentID)
}

// MarkReturned closes a loan. The condition status != 'Returned' makes the
// second of two racing returns affect zero rows; the caller maps that to
// circulation.ErrAlreadyReturned.
func (s LoanStore) MarkReturned(ctx context.Context, issueID int64, returnDate time.Time) (int64, error) {
	return s.markReturned(ctx, s.engine.db, issueID, returnDate)
}

// ExtendDueDate applies a reissue to a loan: new due date, incremented
// reissue count, status forced back to Issued. Only active loans still at
// expectedReissueCount qualify; zero affected rows means the loan was closed
// or reissued concurrently.
func (s LoanStore) ExtendDueDate(ctx context.Context, issueID int64, newDueDate time.Time, expectedReissueCount int) (int64, error) {
	return s.extendDueDate(ctx, s.engine.db, issueID, newDueDate, expectedReissueCount)
}

// ListByStudent returns all loan records of one student, newest first, joined
// with the book title and the unpaid-fine marker.
func (s LoanStore) ListByStudent(ctx context.Context, studentID string) ([]StudentLoan, error) {
	unpaidFines := goqu.Dialect(dialectPostgres).
		From(s.engine.tables.Fines).
		Select(goqu.L("1")).
		Where(
			goqu.L("?.? = ?.?",
				goqu.T(s.engine.tables.Fines), goqu.C(colFineIssueID),
				goqu.T(s.engine.tables.IssuedBooks), goqu.C(colIssueID)),
			goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
		)

	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.engine.tables.IssuedBooks).
		Join(
			goqu.T(s.engine.tables.Books),
			goqu.On(goqu.L("?.? = ?.?",
				goqu.T(s.engine.tables.IssuedBooks), goqu.C(colLoanBookID),
				goqu.T(s.engine.tables.Books), goqu.C(colBookID))),
		).
		Select(
			goqu.T(s.engine.tables.IssuedBooks).Col(colIssueID),
			goqu.T(s.engine.tables.IssuedBooks).Col(colLoanBookID),
			goqu.T(s.engine.tables.IssuedBooks).Col(colStudentID),
			goqu.T(s.engine.tables.IssuedBooks).Col(colIssueDate),
			goqu.T(s.engine.tables.IssuedBooks).Col(colDueDate),
			goqu.T(s.engine.tables.IssuedBooks).Col(colReturnDate),
			goqu.T(s.engine.tables.IssuedBooks).Col(colLoanStatus),
			goqu.T(s.engine.tables.IssuedBooks).Col(colReissueCount),
			goqu.T(s.engine.tables.Books).Col(colTitle),
			goqu.L("EXISTS ?", unpaidFines),
		).
		Where(goqu.Ex{colStudentID: studentID}).
		Order(goqu.T(s.engine.tables.IssuedBooks).Col(colIssueID).Desc()).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrStudentID, studentID)

		return nil, buildErr
	}

	rows, _, queryErr := s.engine.executeQuery(ctx, s.engine.db, sqlQuery, logActionStudentLoans)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.engine.closeRows(ctx, rows)

	loans := make([]StudentLoan, 0)

	for rows.Next() {
		var loan StudentLoan
		var returnDate sql.NullTime

		scanErr := rows.Scan(
			&loan.IssueID, &loan.BookID, &loan.StudentID,
			&loan.IssueDate, &loan.DueDate, &returnDate,
			&loan.Status, &loan.ReissueCount,
			&loan.BookTitle, &loan.HasUnpaidFine,
		)
		if scanErr != nil {
			s.engine.logError(ctx, logMsgScanRowFailed, scanErr, logAttrStudentID, studentID)

			return nil, scanErr
		}

		if returnDate.Valid {
			loan.ReturnDate = &returnDate.Time
		}

		loans = append(loans, loan)
	}

	return loans, nil
}

func (s LoanStore) createLoan(ctx context.Context, dbh adapters.DBHandle, loan circulation.LoanRecord) (int64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(s.engine.tables.IssuedBooks).
		Cols(colLoanBookID, colStudentID, colIssueDate, colDueDate, colLoanStatus, colReissueCount).
		Vals(goqu.Vals{loan.BookID, loan.StudentID, loan.IssueDate, loan.DueDate, string(loan.Status), loan.ReissueCount}).
		Returning(colIssueID).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, loan.BookID)

		return 0, buildErr
	}

	rows, _, queryErr := s.engine.executeQuery(ctx, dbh, sqlQuery, logActionInsertLoan)
	if queryErr != nil {
		return 0, queryErr
	}
	defer s.engine.closeRows(ctx, rows)

	if !rows.Next() {
		return 0, circulation.ErrStorageFailure
	}

	var issueID int64
	if scanErr := rows.Scan(&issueID); scanErr != nil {
		s.engine.logError(ctx, logMsgScanRowFailed, scanErr, logAttrBookID, loan.BookID)

		return 0, scanErr
	}

	return issueID, nil
}

func (s LoanStore) findLoan(ctx context.Context, dbh adapters.DBHandle, issueID int64) (circulation.LoanRecord, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.engine.tables.IssuedBooks).
		Select(colIssueID, colLoanBookID, colStudentID, colIssueDate, colDueDate, colReturnDate, colLoanStatus, colReissueCount).
		Where(goqu.Ex{colIssueID: issueID}).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrIssueID, issueID)

		return circulation.LoanRecord{}, buildErr
	}

	return s.queryOneLoan(ctx, dbh, sqlQuery)
}

func (s LoanStore) findActiveLoan(ctx context.Context, dbh adapters.DBHandle, bookID string, studentID string) (circulation.LoanRecord, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.engine.tables.IssuedBooks).
		Select(colIssueID, colLoanBookID, colStudentID, colIssueDate, colDueDate, colReturnDate, colLoanStatus, colReissueCount).
		Where(
			goqu.Ex{colLoanBookID: bookID},
			goqu.Ex{colStudentID: studentID},
			goqu.C(colLoanStatus).In(string(circulation.StatusIssued), string(circulation.StatusOverdue)),
		).
		Order(goqu.C(colIssueID).Desc()).
		Limit(1).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID, logAttrStudentID, studentID)

		return circulation.LoanRecord{}, buildErr
	}

	return s.queryOneLoan(ctx, dbh, sqlQuery)
}

// findLatestLoan finds the most recent loan of the book to the student
// regardless of status. The return flow needs it to tell "never borrowed"
// apart from "already returned".
func (s LoanStore) findLatestLoan(ctx context.Context, dbh adapters.DBHandle, bookID string, studentID string) (circulation.LoanRecord, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.engine.tables.IssuedBooks).
		Select(colIssueID, colLoanBookID, colStudentID, colIssueDate, colDueDate, colReturnDate, colLoanStatus, colReissueCount).
		Where(
			goqu.Ex{colLoanBookID: bookID},
			goqu.Ex{colStudentID: studentID},
		).
		Order(goqu.C(colIssueID).Desc()).
		Limit(1).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrBookID, bookID, logAttrStudentID, studentID)

		return circulation.LoanRecord{}, buildErr
	}

	return s.queryOneLoan(ctx, dbh, sqlQuery)
}

func (s LoanStore) queryOneLoan(ctx context.Context, dbh adapters.DBHandle, sqlQuery string) (circulation.LoanRecord, error) {
	rows, _, queryErr := s.engine.executeQuery(ctx, dbh, sqlQuery, logActionFindLoan)
	if queryErr != nil {
		return circulation.LoanRecord{}, queryErr
	}
	defer s.engine.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.LoanRecord{}, circulation.ErrLoanNotFound
	}

	loan, scanErr := scanLoan(rows)
	if scanErr != nil {
		s.engine.logError(ctx, logMsgScanRowFailed, scanErr)

		return circulation.LoanRecord{}, scanErr
	}

	return loan, nil
}

func (s LoanStore) markReturned(ctx context.Context, dbh adapters.DBHandle, issueID int64, returnDate time.Time) (int64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(s.engine.tables.IssuedBooks).
		Set(goqu.Record{
			colReturnDate: returnDate,
			colLoanStatus: string(circulation.StatusReturned),
		}).
		Where(
			goqu.Ex{colIssueID: issueID},
			goqu.C(colLoanStatus).Neq(string(circulation.StatusReturned)),
		).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrIssueID, issueID)

		return 0, buildErr
	}

	rowsAffected, _, execErr := s.engine.executeStatement(ctx, dbh, sqlQuery, logActionMarkReturned)
	if execErr != nil {
		return 0, execErr
	}

	return rowsAffected, nil
}

// extendDueDate is a conditional update: besides the open status it guards on
// the reissue count the caller evaluated the limit against, so a concurrent
// reissue that already incremented the count makes this one affect zero rows.
func (s LoanStore) extendDueDate(ctx context.Context, dbh adapters.DBHandle, issueID int64, newDueDate time.Time, expectedReissueCount int) (int64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(s.engine.tables.IssuedBooks).
		Set(goqu.Record{
			colDueDate:      newDueDate,
			colReissueCount: goqu.L("? + 1", goqu.C(colReissueCount)),
			colLoanStatus:   string(circulation.StatusIssued),
		}).
		Where(
			goqu.Ex{colIssueID: issueID},
			goqu.Ex{colReissueCount: expectedReissueCount},
			goqu.C(colLoanStatus).In(string(circulation.StatusIssued), string(circulation.StatusOverdue)),
		).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrIssueID, issueID)

		return 0, buildErr
	}

	rowsAffected, _, execErr := s.engine.executeStatement(ctx, dbh, sqlQuery, logActionExtendDueDate)
	if execErr != nil {
		return 0, execErr
	}

	return rowsAffected, nil
}

// markOverdue persists the Overdue status for every Issued loan whose due
// date lies before asOf and returns the updated records. The comparison is
// made at calendar-date precision so that a loan due later the same day is
// not marked early; DaysOverdue applies the same truncation.
func (s LoanStore) markOverdue(ctx context.Context, dbh adapters.DBHandle, asOf time.Time) ([]circulation.LoanRecord, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(s.engine.tables.IssuedBooks).
		Set(goqu.Record{colLoanStatus: string(circulation.StatusOverdue)}).
		Where(
			goqu.Ex{colLoanStatus: string(circulation.StatusIssued)},
			goqu.C(colDueDate).Lt(circulation.TruncateToDate(asOf)),
		).
		Returning(colIssueID, colLoanBookID, colStudentID, colIssueDate, colDueDate, colReturnDate, colLoanStatus, colReissueCount).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := s.engine.executeQuery(ctx, dbh, sqlQuery, logActionMarkOverdue)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.engine.closeRows(ctx, rows)

	loans := make([]circulation.LoanRecord, 0)

	for rows.Next() {
		loan, scanErr := scanLoan(rows)
		if scanErr != nil {
			s.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		loans = append(loans, loan)
	}

	return loans, nil
}

// scanLoan scans one full loan row in column order, mapping a NULL return
// date to a nil pointer.
func scanLoan(rows adapters.DBRows) (circulation.LoanRecord, error) {
	var loan circulation.LoanRecord
	var returnDate sql.NullTime

	scanErr := rows.Scan(
		&loan.IssueID, &loan.BookID, &loan.StudentID,
		&loan.IssueDate, &loan.DueDate, &returnDate,
		&loan.Status, &loan.ReissueCount,
	)
	if scanErr != nil {
		return circulation.LoanRecord{}, scanErr
	}

	if returnDate.Valid {
		loan.ReturnDate = &returnDate.Time
	}

	return loan, nil
}
