package circulation

import (
	"fmt"
	"strconv"
	"strings"
)

// Book represents one title in the inventory with its copy counts.
//
// The invariant 0 <= AvailableCopies <= TotalCopies holds at all times;
// AvailableCopies only changes through the circulation service's issue and
// return operations, never directly.
type Book struct {
	BookID          string
	Title           string
	Author          string
	Category        string
	TotalCopies     int
	AvailableCopies int
}

// HasOpenLoans reports whether any copies of the book are currently on loan.
func (b Book) HasOpenLoans() bool {
	return b.AvailableCopies < b.TotalCopies
}

// NextSequentialID computes the successor of a prefixed, zero-padded
// sequential identifier such as "B007" or "L042". When lastID is empty or its
// numeric suffix cannot be parsed, the sequence restarts at 1.
func NextSequentialID(prefix string, lastID string) string {
	next := 1

	if strings.HasPrefix(lastID, prefix) {
		if n, err := strconv.Atoi(lastID[len(prefix):]); err == nil && n > 0 {
			next = n + 1
		}
	}

	return fmt.Sprintf("%s%03d", prefix, next)
}

// BookIDPrefix and LibrarianIDPrefix are the prefixes of the generated
// sequential identifiers.
const (
	BookIDPrefix      = "B"
	LibrarianIDPrefix = "L"
)
