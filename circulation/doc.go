// Package circulation provides the core abstractions and types for a library
// circulation system: book inventory, loan records, fines, and the policies
// that govern issuing, returning, and reissuing books.
//
// This package defines the fundamental entities and rules used by the storage
// engine implementations, including status enums, typed business errors,
// settings keys with their defaults, and the fine computation.
//
// The circulation core enforces:
//   - available_copies stays within [0, total_copies] for every book
//   - at most one unpaid fine per loan record
//   - loan status transitions Issued -> Returned (terminal), with Overdue as
//     a derived predicate that may be persisted by a sweep
//
// Key types:
//   - Book, LoanRecord, Fine, Notification: the persisted entities
//   - Session: the acting user, passed explicitly into every operation
//   - ReissuePolicy: the configurable eligibility rules for due-date extension
//
// Common usage pattern:
//
//	settings := circulation.DefaultSettings()
//	due := circulation.DueDate(issueDate, settings.BorrowPeriodDays)
//	fine := circulation.FineFor(due, returnDate, settings.FinePerDay)
package circulation
