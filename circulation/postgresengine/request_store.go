package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
)

const (
	colRequestID     = "request_id"
	colRequestTitle  = "title"
	colRequestAuthor = "author"
	colRequestReason = "reason"
	colRequestStatus = "status"
	colRequestDate   = "request_date"

	logActionInsertRequest = "insert book request"
	logActionListRequests  = "list book requests"
)

// RequestStore records student acquisition requests. Requests are write-once
// from this side; librarians read them when deciding what to purchase.
type RequestStore struct {
	engine *Engine
}

// Submit validates and stores a new Pending request, returning it with the
// assigned id.
func (r RequestStore) Submit(ctx context.Context, studentID string, title string, author string, reason string) (circulation.BookRequest, error) {
	request, buildErr := circulation.BuildBookRequest(studentID, title, author, reason, r.engine.clock())
	if buildErr != nil {
		return circulation.BookRequest{}, buildErr
	}

	sqlQuery, _, sqlErr := goqu.Dialect(dialectPostgres).
		Insert(r.engine.tables.BookRequests).
		Cols(colStudentID, colRequestTitle, colRequestAuthor, colRequestReason, colRequestStatus, colRequestDate).
		Vals(goqu.Vals{
			request.StudentID, request.Title, request.Author, request.Reason,
			string(request.Status), request.RequestDate,
		}).
		Returning(colRequestID).
		ToSQL()
	if sqlErr != nil {
		r.engine.logError(ctx, logMsgBuildQueryFailed, sqlErr, logAttrStudentID, studentID)

		return circulation.BookRequest{}, sqlErr
	}

	rows, _, queryErr := r.engine.executeQuery(ctx, r.engine.db, sqlQuery, logActionInsertRequest)
	if queryErr != nil {
		return circulation.BookRequest{}, queryErr
	}
	defer r.engine.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.BookRequest{}, circulation.ErrStorageFailure
	}

	if scanErr := rows.Scan(&request.RequestID); scanErr != nil {
		r.engine.logError(ctx, logMsgScanRowFailed, scanErr, logAttrStudentID, studentID)

		return circulation.BookRequest{}, scanErr
	}

	return request, nil
}

// ListPending returns all requests still awaiting a decision, oldest first so
// that librarians work through them in submission order.
func (r RequestStore) ListPending(ctx context.Context) ([]circulation.BookRequest, error) {
	return r.listRequests(ctx, goqu.Ex{colRequestStatus: string(circulation.RequestPending)})
}

// ListByStudent returns all requests of one student, newest first.
func (r RequestStore) ListByStudent(ctx context.Context, studentID string) ([]circulation.BookRequest, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(r.engine.tables.BookRequests).
		Select(colRequestID, colStudentID, colRequestTitle, colRequestAuthor, colRequestReason, colRequestStatus, colRequestDate).
		Where(goqu.Ex{colStudentID: studentID}).
		Order(goqu.C(colRequestDate).Desc())

	return r.queryRequests(ctx, stmt)
}

func (r RequestStore) listRequests(ctx context.Context, where goqu.Ex) ([]circulation.BookRequest, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(r.engine.tables.BookRequests).
		Select(colRequestID, colStudentID, colRequestTitle, colRequestAuthor, colRequestReason, colRequestStatus, colRequestDate).
		Where(where).
		Order(goqu.C(colRequestDate).Asc())

	return r.queryRequests(ctx, stmt)
}

func (r RequestStore) queryRequests(ctx context.Context, stmt *goqu.SelectDataset) ([]circulation.BookRequest, error) {
	sqlQuery, _, buildErr := stmt.ToSQL()
	if buildErr != nil {
		r.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := r.engine.executeQuery(ctx, r.engine.db, sqlQuery, logActionListRequests)
	if queryErr != nil {
		return nil, queryErr
	}
	defer r.engine.closeRows(ctx, rows)

	requests := make([]circulation.BookRequest, 0)

	for rows.Next() {
		var request circulation.BookRequest

		scanErr := rows.Scan(
			&request.RequestID, &request.StudentID, &request.Title,
			&request.Author, &request.Reason, &request.Status, &request.RequestDate,
		)
		if scanErr != nil {
			r.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		requests = append(requests, request)
	}

	return requests, nil
}
