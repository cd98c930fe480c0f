package circulation

import (
	"errors"
	"strings"
	"time"
)

// RequestStatus is the persisted status of a book acquisition request. The
// string values are part of the storage contract and must not change.
type RequestStatus string

const (
	RequestPending RequestStatus = "Pending"
)

// ErrInvalidBookRequest is returned when a request is submitted without a
// student or a title.
var ErrInvalidBookRequest = errors.New("book request needs a student and a title")

// BookRequest is a student's wish for a title the library does not stock.
// Requests are append-only from the circulation side; librarians read them
// when deciding on acquisitions.
type BookRequest struct {
	RequestID   int64
	StudentID   string
	Title       string
	Author      string
	Reason      string
	Status      RequestStatus
	RequestDate time.Time
}

// BuildBookRequest validates and assembles a new Pending request.
func BuildBookRequest(studentID string, title string, author string, reason string, requestDate time.Time) (BookRequest, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(title) == "" {
		return BookRequest{}, ErrInvalidBookRequest
	}

	return BookRequest{
		StudentID:   studentID,
		Title:       strings.TrimSpace(title),
		Author:      strings.TrimSpace(author),
		Reason:      strings.TrimSpace(reason),
		Status:      RequestPending,
		RequestDate: requestDate,
	}, nil
}
