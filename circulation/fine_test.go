package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

func Test_FineFor(t *testing.T) {
	dueDate := time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		returnDate time.Time
		finePerDay float64
		expected   float64
	}{
		{
			name:       "on_time_return_has_no_fine",
			returnDate: time.Date(2025, time.March, 14, 18, 0, 0, 0, time.UTC),
			finePerDay: 1.0,
			expected:   0,
		},
		{
			name:       "return_on_due_date_has_no_fine",
			returnDate: time.Date(2025, time.March, 15, 23, 0, 0, 0, time.UTC),
			finePerDay: 1.0,
			expected:   0,
		},
		{
			name:       "three_days_late_at_default_rate",
			returnDate: time.Date(2025, time.March, 18, 10, 0, 0, 0, time.UTC),
			finePerDay: 1.0,
			expected:   3.0,
		},
		{
			name:       "fractional_rate_is_multiplied",
			returnDate: time.Date(2025, time.March, 17, 10, 0, 0, 0, time.UTC),
			finePerDay: 2.5,
			expected:   5.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, circulation.FineFor(dueDate, tc.returnDate, tc.finePerDay), 0.0001)
		})
	}
}
