package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	logMsgBookIssued   = "book issued"
	logMsgBookReturned = "book returned"
	logMsgBookReissued = "book reissued"
	logMsgFineAssessed = "fine assessed"
	logMsgOverdueSwept = "overdue loans swept"
	logMsgNotifyFailed = "failed to append notification record"

	logActionNotifySavepoint = "fine notification savepoint"

	sqlSavepointNotify = "SAVEPOINT fine_notification"
	sqlRollbackNotify  = "ROLLBACK TO SAVEPOINT fine_notification"
	sqlReleaseNotify   = "RELEASE SAVEPOINT fine_notification"

	// NoFineMessage is the assessment message when nothing is owed.
	noFineMessage = "no fine"
)

// CirculationService orchestrates the multi-statement circulation operations.
// Each operation runs in exactly one database transaction and re-reads all
// state it depends on inside that transaction; nothing is cached between
// calls and no in-process locks are held.
type CirculationService struct {
	engine *Engine
}

// IssueResult reports a successful book issuance.
type IssueResult struct {
	IssueID   int64
	BookID    string
	StudentID string
	IssueDate time.Time
	DueDate   time.Time
}

// ReturnResult reports a successful book return. FineAmount is zero for an
// on-time return; a positive amount means an unpaid fine was recorded.
type ReturnResult struct {
	IssueID    int64
	ReturnDate time.Time
	FineAmount float64
}

// ReissueResult reports a successful reissue.
type ReissueResult struct {
	IssueID      int64
	NewDueDate   time.Time
	ReissueCount int
}

// FineAssessment is the read-only fine preview for an active loan.
type FineAssessment struct {
	IssueID     int64
	DaysOverdue int
	Amount      float64
	Message     string
}

// SweepResult reports one overdue sweep run.
type SweepResult struct {
	LoansMarked   int
	Notifications int
}

// IssueBook lends one copy of the book to the student. The availability
// pre-check and the conditional decrement both run inside the transaction;
// when two sessions race for the last copy, exactly one of them succeeds and
// the other receives circulation.ErrConcurrencyConflict.
func (c CirculationService) IssueBook(ctx context.Context, session circulation.Session, bookID string, studentID string) (IssueResult, error) {
	observer, ctx := c.engine.startOperation(ctx, operationIssueBook, map[string]string{
		logAttrBookID:    bookID,
		logAttrStudentID: studentID,
	})

	var result IssueResult

	txErr := c.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		exists, existsErr := c.studentExists(ctx, dbh, studentID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return circulation.ErrStudentNotFound
		}

		book, findErr := c.engine.Inventory().findBook(ctx, dbh, bookID)
		if findErr != nil {
			return findErr
		}

		if book.AvailableCopies <= 0 {
			return circulation.ErrBookNotAvailable
		}

		rowsAffected, decErr := c.engine.Inventory().decrementAvailable(ctx, dbh, bookID)
		if decErr != nil {
			return decErr
		}

		// The pre-check saw an available copy, so zero affected rows means a
		// concurrent transaction took the last one between the two statements.
		if rowsAffected == 0 {
			c.engine.logOperation(ctx, logMsgConflict, logAttrBookID, bookID, logAttrStudentID, studentID)

			return circulation.ErrConcurrencyConflict
		}

		now := c.engine.clock()
		borrowDays := c.engine.Settings().getInt(ctx, dbh, circulation.SettingBorrowPeriodDays, circulation.DefaultBorrowPeriodDays)

		loan := circulation.LoanRecord{
			BookID:    bookID,
			StudentID: studentID,
			IssueDate: now,
			DueDate:   circulation.DueDate(now, borrowDays),
			Status:    circulation.StatusIssued,
		}

		issueID, createErr := c.engine.Loans().createLoan(ctx, dbh, loan)
		if createErr != nil {
			return createErr
		}

		result = IssueResult{
			IssueID:   issueID,
			BookID:    bookID,
			StudentID: studentID,
			IssueDate: loan.IssueDate,
			DueDate:   loan.DueDate,
		}

		return nil
	})
	if txErr != nil {
		c.finishFailed(observer, txErr)

		return IssueResult{}, txErr
	}

	c.engine.logOperation(ctx, logMsgBookIssued,
		logAttrIssueID, result.IssueID,
		logAttrBookID, bookID,
		logAttrStudentID, studentID,
		logAttrActorID, session.ActorID,
	)
	observer.succeeded(map[string]string{logAttrIssueID: fmt.Sprintf("%d", result.IssueID)})

	return result, nil
}

// ReturnBook closes the student's open loan of the book, restores the copy to
// the available pool, and records an unpaid fine when the return is late.
// Returning the same loan twice yields circulation.ErrAlreadyReturned on the
// second call, with no double increment of availability.
func (c CirculationService) ReturnBook(ctx context.Context, session circulation.Session, bookID string, studentID string) (ReturnResult, error) {
	observer, ctx := c.engine.startOperation(ctx, operationReturnBook, map[string]string{
		logAttrBookID:    bookID,
		logAttrStudentID: studentID,
	})

	var result ReturnResult

	txErr := c.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		loan, findErr := c.engine.Loans().findLatestLoan(ctx, dbh, bookID, studentID)
		if findErr != nil {
			return findErr
		}

		if !loan.IsActive() {
			return circulation.ErrAlreadyReturned
		}

		now := c.engine.clock()

		rowsAffected, markErr := c.engine.Loans().markReturned(ctx, dbh, loan.IssueID, now)
		if markErr != nil {
			return markErr
		}

		// The guard on the update makes the slower of two racing returns a
		// no-op instead of a second increment.
		if rowsAffected == 0 {
			return circulation.ErrAlreadyReturned
		}

		finePerDay := c.engine.Settings().getFloat(ctx, dbh, circulation.SettingFinePerDay, circulation.DefaultFinePerDay)
		fineAmount := circulation.FineFor(loan.DueDate, now, finePerDay)

		if fineAmount > 0 {
			fine := circulation.Fine{
				StudentID:  studentID,
				IssueID:    loan.IssueID,
				FineAmount: fineAmount,
				FineDate:   now,
				Status:     circulation.FineUnpaid,
			}

			if fineErr := c.engine.Fines().upsertUnpaidFine(ctx, dbh, fine); fineErr != nil {
				return fineErr
			}

			if notifyErr := c.appendFineNotification(ctx, dbh, loan, fineAmount, now); notifyErr != nil {
				return notifyErr
			}
		}

		if incErr := c.engine.Inventory().incrementAvailable(ctx, dbh, bookID); incErr != nil {
			return incErr
		}

		result = ReturnResult{
			IssueID:    loan.IssueID,
			ReturnDate: now,
			FineAmount: fineAmount,
		}

		return nil
	})
	if txErr != nil {
		c.finishFailed(observer, txErr)

		return ReturnResult{}, txErr
	}

	c.engine.logOperation(ctx, logMsgBookReturned,
		logAttrIssueID, result.IssueID,
		logAttrBookID, bookID,
		logAttrStudentID, studentID,
		logAttrFineAmount, result.FineAmount,
		logAttrActorID, session.ActorID,
	)
	c.engine.recordFineMetrics(ctx, operationReturnBook, result.FineAmount)
	observer.succeeded(map[string]string{logAttrIssueID: fmt.Sprintf("%d", result.IssueID)})

	return result, nil
}

// ReissueBook extends the due date of the student's open loan of the book.
// The eligibility gates (no unpaid fine, reissue limit, overdue policy) are
// evaluated against fresh state inside the transaction.
func (c CirculationService) ReissueBook(ctx context.Context, session circulation.Session, bookID string, studentID string) (ReissueResult, error) {
	observer, ctx := c.engine.startOperation(ctx, operationReissueBook, map[string]string{
		logAttrBookID:    bookID,
		logAttrStudentID: studentID,
	})

	var result ReissueResult

	txErr := c.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		loan, findErr := c.engine.Loans().findActiveLoan(ctx, dbh, bookID, studentID)
		if findErr != nil {
			return findErr
		}

		hasUnpaid, unpaidErr := c.engine.Fines().hasUnpaidFine(ctx, dbh, loan.IssueID)
		if unpaidErr != nil {
			return unpaidErr
		}

		now := c.engine.clock()
		settings := c.engine.Settings().resolve(ctx, dbh)

		if gateErr := c.engine.reissuePolicy.CheckReissue(loan, hasUnpaid, settings.MaxReissues, now); gateErr != nil {
			return gateErr
		}

		newDueDate := circulation.DueDate(now, settings.BorrowPeriodDays)

		rowsAffected, extendErr := c.engine.Loans().extendDueDate(ctx, dbh, loan.IssueID, newDueDate, loan.ReissueCount)
		if extendErr != nil {
			return extendErr
		}

		if rowsAffected == 0 {
			c.engine.logOperation(ctx, logMsgConflict, logAttrIssueID, loan.IssueID)

			return circulation.ErrConcurrencyConflict
		}

		result = ReissueResult{
			IssueID:      loan.IssueID,
			NewDueDate:   newDueDate,
			ReissueCount: loan.ReissueCount + 1,
		}

		return nil
	})
	if txErr != nil {
		c.finishFailed(observer, txErr)

		return ReissueResult{}, txErr
	}

	c.engine.logOperation(ctx, logMsgBookReissued,
		logAttrIssueID, result.IssueID,
		logAttrBookID, bookID,
		logAttrStudentID, studentID,
		logAttrActorID, session.ActorID,
	)
	observer.succeeded(map[string]string{logAttrIssueID: fmt.Sprintf("%d", result.IssueID)})

	return result, nil
}

// CalculateFine previews the fine an active loan would accrue if returned
// now. It writes nothing; the actual fine record is created by ReturnBook.
func (c CirculationService) CalculateFine(ctx context.Context, session circulation.Session, bookID string, studentID string) (FineAssessment, error) {
	observer, ctx := c.engine.startOperation(ctx, operationCalculateFine, map[string]string{
		logAttrBookID:    bookID,
		logAttrStudentID: studentID,
	})

	loan, findErr := c.engine.Loans().FindActiveLoan(ctx, bookID, studentID)
	if findErr != nil {
		c.finishFailed(observer, findErr)

		return FineAssessment{}, findErr
	}

	now := c.engine.clock()
	finePerDay := c.engine.Settings().GetFloat(ctx, circulation.SettingFinePerDay, circulation.DefaultFinePerDay)

	assessment := FineAssessment{
		IssueID:     loan.IssueID,
		DaysOverdue: circulation.DaysOverdue(loan.DueDate, now),
		Amount:      circulation.FineFor(loan.DueDate, now, finePerDay),
		Message:     noFineMessage,
	}

	if assessment.Amount > 0 {
		assessment.Message = fmt.Sprintf("%d day(s) overdue, fine %.2f", assessment.DaysOverdue, assessment.Amount)
	}

	c.engine.logOperation(ctx, logMsgFineAssessed,
		logAttrIssueID, assessment.IssueID,
		logAttrFineAmount, assessment.Amount,
		logAttrActorID, session.ActorID,
	)
	observer.succeeded(map[string]string{logAttrIssueID: fmt.Sprintf("%d", assessment.IssueID)})

	return assessment, nil
}

// SweepOverdue persists the Overdue status for every lapsed loan and appends
// one notification record per affected loan. The sweep only changes the
// advisory stored status; fine accrual still happens at return time.
func (c CirculationService) SweepOverdue(ctx context.Context, session circulation.Session) (SweepResult, error) {
	observer, ctx := c.engine.startOperation(ctx, operationSweepOverdue, nil)

	var result SweepResult

	txErr := c.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		now := c.engine.clock()

		lapsed, markErr := c.engine.Loans().markOverdue(ctx, dbh, now)
		if markErr != nil {
			return markErr
		}

		result.LoansMarked = len(lapsed)

		for _, loan := range lapsed {
			meta, metaErr := jsoniter.ConfigFastest.Marshal(map[string]any{
				"book_id":  loan.BookID,
				"issue_id": loan.IssueID,
				"due_date": loan.DueDate.Format(time.DateOnly),
			})
			if metaErr != nil {
				return metaErr
			}

			message := fmt.Sprintf("Book %s is overdue since %s.", loan.BookID, loan.DueDate.Format(time.DateOnly))

			notification, buildErr := circulation.BuildNotification(
				loan.StudentID, message, circulation.NotificationTypeOverdue, meta, now)
			if buildErr != nil {
				return buildErr
			}

			if appendErr := c.engine.Notifications().append(ctx, dbh, notification); appendErr != nil {
				return appendErr
			}

			result.Notifications++
		}

		return nil
	})
	if txErr != nil {
		c.finishFailed(observer, txErr)

		return SweepResult{}, txErr
	}

	c.engine.logOperation(ctx, logMsgOverdueSwept,
		logAttrLoanCount, result.LoansMarked,
		logAttrActorID, session.ActorID,
	)
	observer.succeeded(map[string]string{logAttrLoanCount: fmt.Sprintf("%d", result.LoansMarked)})

	return result, nil
}

// appendFineNotification records a fine notification inside the return
// transaction, fenced by a savepoint. A failed insert aborts only the
// savepoint, not the transaction: the failure is logged, the savepoint rolled
// back, and the return commits without the courtesy message. Only a broken
// savepoint statement itself fails the return.
func (c CirculationService) appendFineNotification(ctx context.Context, dbh adapters.DBHandle, loan circulation.LoanRecord, amount float64, now time.Time) error {
	meta, metaErr := jsoniter.ConfigFastest.Marshal(map[string]any{
		"book_id":     loan.BookID,
		"issue_id":    loan.IssueID,
		"fine_amount": amount,
	})
	if metaErr != nil {
		c.engine.logWarn(ctx, logMsgNotifyFailed, logAttrError, metaErr.Error())

		return nil
	}

	message := fmt.Sprintf("Book %s returned late, fine %.2f recorded.", loan.BookID, amount)

	notification, buildErr := circulation.BuildNotification(
		loan.StudentID, message, circulation.NotificationTypeFine, meta, now)
	if buildErr != nil {
		c.engine.logWarn(ctx, logMsgNotifyFailed, logAttrError, buildErr.Error())

		return nil
	}

	if _, _, spErr := c.engine.executeStatement(ctx, dbh, sqlSavepointNotify, logActionNotifySavepoint); spErr != nil {
		return spErr
	}

	if appendErr := c.engine.Notifications().append(ctx, dbh, notification); appendErr != nil {
		c.engine.logWarn(ctx, logMsgNotifyFailed, logAttrError, appendErr.Error())

		_, _, rbErr := c.engine.executeStatement(ctx, dbh, sqlRollbackNotify, logActionNotifySavepoint)

		return rbErr
	}

	_, _, releaseErr := c.engine.executeStatement(ctx, dbh, sqlReleaseNotify, logActionNotifySavepoint)

	return releaseErr
}

// finishFailed maps the error to the observer outcome, counting concurrency
// conflicts separately from other failures.
func (c CirculationService) finishFailed(observer *operationObserver, err error) {
	if errors.Is(err, circulation.ErrConcurrencyConflict) {
		observer.conflicted()

		return
	}

	observer.failed(errorTypeOf(err))
}

// studentExists checks borrower existence; students are managed elsewhere and
// consumed here as an opaque identity.
func (c CirculationService) studentExists(ctx context.Context, dbh adapters.DBHandle, studentID string) (bool, error) {
	exists := goqu.Dialect(dialectPostgres).
		From(c.engine.tables.Students).
		Select(goqu.L("1")).
		Where(goqu.Ex{colStudentID: studentID})

	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Select(goqu.L("EXISTS ?", exists)).
		ToSQL()
	if buildErr != nil {
		c.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrStudentID, studentID)

		return false, buildErr
	}

	rows, _, queryErr := c.engine.executeQuery(ctx, dbh, sqlQuery, logActionStudentExists)
	if queryErr != nil {
		return false, queryErr
	}
	defer c.engine.closeRows(ctx, rows)

	var found bool
	if rows.Next() {
		if scanErr := rows.Scan(&found); scanErr != nil {
			c.engine.logError(ctx, logMsgScanRowFailed, scanErr, logAttrStudentID, studentID)

			return false, scanErr
		}
	}

	return found, nil
}
