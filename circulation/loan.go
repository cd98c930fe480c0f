package circulation

import (
	"time"
)

// LoanStatus is the persisted status of a loan record. The string values are
// part of the storage contract and must not change.
type LoanStatus string

const (
	StatusIssued   LoanStatus = "Issued"
	StatusOverdue  LoanStatus = "Overdue"
	StatusReturned LoanStatus = "Returned"
)

// LoanRecord represents one issuance of one book copy to one student.
//
// Status follows the state machine Issued -> Returned (terminal). Overdue is
// a derived condition (due date passed without a return); the persisted
// "Overdue" status may lag behind and is only written by the overdue sweep.
// A reissue extends DueDate in place, increments ReissueCount and forces the
// status back to Issued.
type LoanRecord struct {
	IssueID      int64
	BookID       string
	StudentID    string
	IssueDate    time.Time
	DueDate      time.Time
	ReturnDate   *time.Time
	Status       LoanStatus
	ReissueCount int
}

// IsActive reports whether the loan is still open, i.e. the book has not been
// returned. Both the Issued and the persisted Overdue status count as active.
func (l LoanRecord) IsActive() bool {
	return l.Status == StatusIssued || l.Status == StatusOverdue
}

// IsOverdue reports whether the loan is overdue as of the given date. This is
// the authoritative predicate; the stored status is advisory only.
func (l LoanRecord) IsOverdue(asOf time.Time) bool {
	if !l.IsActive() {
		return false
	}
	return DaysOverdue(l.DueDate, asOf) > 0
}

// DueDate computes the due date for a loan issued on issueDate with the given
// borrow period.
func DueDate(issueDate time.Time, borrowPeriodDays int) time.Time {
	return issueDate.AddDate(0, 0, borrowPeriodDays)
}

// DaysOverdue returns the number of whole days by which asOf exceeds dueDate,
// never negative. Both timestamps are truncated to their calendar date so that
// time-of-day does not influence the count.
func DaysOverdue(dueDate time.Time, asOf time.Time) int {
	due := TruncateToDate(dueDate)
	now := TruncateToDate(asOf)

	days := int(now.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}

	return days
}

// TruncateToDate drops the time-of-day portion of t. Storage queries that
// compare against a due date use it so that their results agree with
// DaysOverdue.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
