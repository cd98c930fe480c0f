package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	colFineID      = "fine_id"
	colFineIssueID = "issue_id"
	colFineAmount  = "fine_amount"
	colFineDate    = "fine_date"
	colFineStatus  = "status"

	logActionUpsertFine = "upsert fine"
	logActionWaiveFine  = "waive fine"
	logActionHasUnpaid  = "has unpaid fine"
	logActionListFines  = "list fines"
	logActionSumFines   = "sum fines"
	logActionMarkPaid   = "mark fines paid"
)

// FineLedger manages accrued fines. At most one Unpaid row exists per loan;
// settlement and waiving flip the status to Paid, rows are never deleted.
type FineLedger struct {
	engine *Engine
}

// WaiveFine settles one unpaid fine without payment. Returns false when the
// fine does not exist or is already settled; that is not an error.
func (f FineLedger) WaiveFine(ctx context.Context, fineID int64) (bool, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(f.engine.tables.Fines).
		Set(goqu.Record{colFineStatus: string(circulation.FinePaid)}).
		Where(
			goqu.Ex{colFineID: fineID},
			goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
		).
		ToSQL()
	if buildErr != nil {
		f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return false, buildErr
	}

	rowsAffected, _, execErr := f.engine.executeStatement(ctx, f.engine.db, sqlQuery, logActionWaiveFine)
	if execErr != nil {
		return false, execErr
	}

	return rowsAffected > 0, nil
}

// ListUnpaidByStudent returns the outstanding fines of one student, newest
// first.
func (f FineLedger) ListUnpaidByStudent(ctx context.Context, studentID string) ([]circulation.Fine, error) {
	return f.listFines(ctx, f.engine.db, goqu.And(
		goqu.Ex{colStudentID: studentID},
		goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
	))
}

// ListUnpaidByIssue returns the outstanding fines attached to one loan.
func (f FineLedger) ListUnpaidByIssue(ctx context.Context, issueID int64) ([]circulation.Fine, error) {
	return f.listFines(ctx, f.engine.db, goqu.And(
		goqu.Ex{colFineIssueID: issueID},
		goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
	))
}

// ListAll returns every fine on record, newest first.
func (f FineLedger) ListAll(ctx context.Context) ([]circulation.Fine, error) {
	return f.listFines(ctx, f.engine.db, nil)
}

// SumByMonth returns the total fine amount accrued in the given month,
// settled or not.
func (f FineLedger) SumByMonth(ctx context.Context, year int, month time.Month) (float64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(f.engine.tables.Fines).
		Select(goqu.COALESCE(goqu.SUM(colFineAmount), 0)).
		Where(
			goqu.L("EXTRACT(YEAR FROM ?) = ?", goqu.C(colFineDate), year),
			goqu.L("EXTRACT(MONTH FROM ?) = ?", goqu.C(colFineDate), int(month)),
		).
		ToSQL()
	if buildErr != nil {
		f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return 0, buildErr
	}

	rows, _, queryErr := f.engine.executeQuery(ctx, f.engine.db, sqlQuery, logActionSumFines)
	if queryErr != nil {
		return 0, queryErr
	}
	defer f.engine.closeRows(ctx, rows)

	var total float64
	if rows.Next() {
		if scanErr := rows.Scan(&total); scanErr != nil {
			f.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return 0, scanErr
		}
	}

	return total, nil
}

// MarkManyPaid settles the given fines in one transaction. The settlement is
// all or nothing: when any of the fines no longer exists or is already
// settled, the whole transaction rolls back with
// circulation.ErrConcurrencyConflict and the affected count before rollback
// is returned for diagnostics.
func (f FineLedger) MarkManyPaid(ctx context.Context, fineIDs []int64) (int64, error) {
	if len(fineIDs) == 0 {
		return 0, nil
	}

	var settled int64

	txErr := f.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		ids := make([]any, 0, len(fineIDs))
		for _, id := range fineIDs {
			ids = append(ids, id)
		}

		sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
			Update(f.engine.tables.Fines).
			Set(goqu.Record{colFineStatus: string(circulation.FinePaid)}).
			Where(
				goqu.C(colFineID).In(ids...),
				goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
			).
			ToSQL()
		if buildErr != nil {
			f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

			return buildErr
		}

		rowsAffected, _, execErr := f.engine.executeStatement(ctx, dbh, sqlQuery, logActionMarkPaid)
		if execErr != nil {
			return execErr
		}

		settled = rowsAffected

		if rowsAffected != int64(len(fineIDs)) {
			f.engine.logOperation(ctx, logMsgConflict,
				logAttrRowsAffected, rowsAffected, "expected", len(fineIDs))
			f.engine.recordConflictMetrics(ctx, logActionMarkPaid)

			return circulation.ErrConcurrencyConflict
		}

		return nil
	})

	return settled, txErr
}

// upsertUnpaidFine records an accrued fine for one loan. An existing unpaid
// row for the same loan is updated in place so re-running the accrual
// converges on one row instead of stacking duplicates.
func (f FineLedger) upsertUnpaidFine(ctx context.Context, dbh adapters.DBHandle, fine circulation.Fine) error {
	updateQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(f.engine.tables.Fines).
		Set(goqu.Record{
			colFineAmount: fine.FineAmount,
			colFineDate:   fine.FineDate,
		}).
		Where(
			goqu.Ex{colFineIssueID: fine.IssueID},
			goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
		).
		ToSQL()
	if buildErr != nil {
		f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrIssueID, fine.IssueID)

		return buildErr
	}

	rowsAffected, _, execErr := f.engine.executeStatement(ctx, dbh, updateQuery, logActionUpsertFine)
	if execErr != nil {
		return execErr
	}

	if rowsAffected > 0 {
		return nil
	}

	insertQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(f.engine.tables.Fines).
		Cols(colStudentID, colFineIssueID, colFineAmount, colFineDate, colFineStatus).
		Vals(goqu.Vals{fine.StudentID, fine.IssueID, fine.FineAmount, fine.FineDate, string(circulation.FineUnpaid)}).
		ToSQL()
	if buildErr != nil {
		f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrIssueID, fine.IssueID)

		return buildErr
	}

	_, _, execErr = f.engine.executeStatement(ctx, dbh, insertQuery, logActionUpsertFine)

	return execErr
}

// hasUnpaidFine reports whether any unpaid fine is attached to the loan.
func (f FineLedger) hasUnpaidFine(ctx context.Context, dbh adapters.DBHandle, issueID int64) (bool, error) {
	exists := goqu.Dialect(dialectPostgres).
		From(f.engine.tables.Fines).
		Select(goqu.L("1")).
		Where(
			goqu.Ex{colFineIssueID: issueID},
			goqu.Ex{colFineStatus: string(circulation.FineUnpaid)},
		)

	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Select(goqu.L("EXISTS ?", exists)).
		ToSQL()
	if buildErr != nil {
		f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrIssueID, issueID)

		return false, buildErr
	}

	rows, _, queryErr := f.engine.executeQuery(ctx, dbh, sqlQuery, logActionHasUnpaid)
	if queryErr != nil {
		return false, queryErr
	}
	defer f.engine.closeRows(ctx, rows)

	var unpaid bool
	if rows.Next() {
		if scanErr := rows.Scan(&unpaid); scanErr != nil {
			f.engine.logError(ctx, logMsgScanRowFailed, scanErr, logAttrIssueID, issueID)

			return false, scanErr
		}
	}

	return unpaid, nil
}

func (f FineLedger) listFines(ctx context.Context, dbh adapters.DBHandle, where goqu.Expression) ([]circulation.Fine, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(f.engine.tables.Fines).
		Select(colFineID, colStudentID, colFineIssueID, colFineAmount, colFineDate, colFineStatus).
		Order(goqu.C(colFineID).Desc())

	if where != nil {
		stmt = stmt.Where(where)
	}

	sqlQuery, _, buildErr := stmt.ToSQL()
	if buildErr != nil {
		f.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := f.engine.executeQuery(ctx, dbh, sqlQuery, logActionListFines)
	if queryErr != nil {
		return nil, queryErr
	}
	defer f.engine.closeRows(ctx, rows)

	fines := make([]circulation.Fine, 0)

	for rows.Next() {
		var fine circulation.Fine

		scanErr := rows.Scan(
			&fine.FineID, &fine.StudentID, &fine.IssueID,
			&fine.FineAmount, &fine.FineDate, &fine.Status,
		)
		if scanErr != nil {
			f.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		fines = append(fines, fine)
	}

	return fines, nil
}
