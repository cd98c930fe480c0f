package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

func Test_ReissuePolicy_CheckReissue(t *testing.T) {
	dueDate := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	beforeDue := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	afterDue := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)

	activeLoan := circulation.LoanRecord{
		Status:  circulation.StatusIssued,
		DueDate: dueDate,
	}

	tests := []struct {
		name          string
		policy        circulation.ReissuePolicy
		loan          circulation.LoanRecord
		hasUnpaidFine bool
		maxReissues   int
		asOf          time.Time
		expectedErr   error
	}{
		{
			name:        "eligible_loan_passes",
			policy:      circulation.DefaultReissuePolicy(),
			loan:        activeLoan,
			maxReissues: 2,
			asOf:        beforeDue,
			expectedErr: nil,
		},
		{
			name:          "unpaid_fine_blocks",
			policy:        circulation.DefaultReissuePolicy(),
			loan:          activeLoan,
			hasUnpaidFine: true,
			maxReissues:   2,
			asOf:          beforeDue,
			expectedErr:   circulation.ErrHasUnpaidFine,
		},
		{
			name:   "reissue_limit_blocks",
			policy: circulation.DefaultReissuePolicy(),
			loan: circulation.LoanRecord{
				Status:       circulation.StatusIssued,
				DueDate:      dueDate,
				ReissueCount: 2,
			},
			maxReissues: 2,
			asOf:        beforeDue,
			expectedErr: circulation.ErrMaxReissuesReached,
		},
		{
			name:        "overdue_loan_blocked_by_default_policy",
			policy:      circulation.DefaultReissuePolicy(),
			loan:        activeLoan,
			maxReissues: 2,
			asOf:        afterDue,
			expectedErr: circulation.ErrLoanOverdue,
		},
		{
			name:        "overdue_loan_allowed_by_permissive_policy",
			policy:      circulation.ReissuePolicy{OverdueRule: circulation.AllowWhenOverdue},
			loan:        activeLoan,
			maxReissues: 2,
			asOf:        afterDue,
			expectedErr: nil,
		},
		{
			name:   "unpaid_fine_wins_over_other_gates",
			policy: circulation.DefaultReissuePolicy(),
			loan: circulation.LoanRecord{
				Status:       circulation.StatusIssued,
				DueDate:      dueDate,
				ReissueCount: 5,
			},
			hasUnpaidFine: true,
			maxReissues:   2,
			asOf:          afterDue,
			expectedErr:   circulation.ErrHasUnpaidFine,
		},
		{
			name:   "reissue_limit_wins_over_overdue",
			policy: circulation.DefaultReissuePolicy(),
			loan: circulation.LoanRecord{
				Status:       circulation.StatusIssued,
				DueDate:      dueDate,
				ReissueCount: 2,
			},
			maxReissues: 2,
			asOf:        afterDue,
			expectedErr: circulation.ErrMaxReissuesReached,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.CheckReissue(tc.loan, tc.hasUnpaidFine, tc.maxReissues, tc.asOf)

			if tc.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expectedErr)
			}
		})
	}
}

func Test_ReissueOverdueRule_String(t *testing.T) {
	assert.Equal(t, "block-when-overdue", circulation.BlockWhenOverdue.String())
	assert.Equal(t, "allow-when-overdue", circulation.AllowWhenOverdue.String())
	assert.Equal(t, "unknown", circulation.ReissueOverdueRule(99).String())
}
