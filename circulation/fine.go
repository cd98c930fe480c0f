package circulation

import (
	"time"
)

// FineStatus is the persisted status of a fine. The string values are part of
// the storage contract and must not change.
type FineStatus string

const (
	FineUnpaid FineStatus = "Unpaid"
	FinePaid   FineStatus = "Paid"
)

// Fine represents an accrued charge for an overdue loan. At most one Unpaid
// fine exists per loan record at any time; re-running the accrual for the same
// loan updates the existing unpaid row instead of creating a duplicate. Fines
// are never physically deleted, settlement flips the status to Paid.
type Fine struct {
	FineID     int64
	StudentID  string
	IssueID    int64
	FineAmount float64
	FineDate   time.Time
	Status     FineStatus
}

// FineFor computes the fine for a loan with the given due date returned on
// returnDate at the given per-day rate. Returns 0 when the return is on time.
func FineFor(dueDate time.Time, returnDate time.Time, finePerDay float64) float64 {
	days := DaysOverdue(dueDate, returnDate)
	if days == 0 {
		return 0
	}

	return float64(days) * finePerDay
}
