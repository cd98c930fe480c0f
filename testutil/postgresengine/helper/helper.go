package helper

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// GivenUniqueID returns a fresh time-ordered UUID for arranging test data.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenUniqueName returns a unique identifier with the given prefix,
// suitable for usernames, student IDs, and email local parts.
func GivenUniqueName(t testing.TB, prefix string) string {
	return prefix + "-" + GivenUniqueID(t).String()
}

// FakeClockAt returns a fixed, deterministic point in time for test clocks.
func FakeClockAt() time.Time {
	return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

// FakeClockFunc returns a clock function frozen at the given time.
func FakeClockFunc(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
