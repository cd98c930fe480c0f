package circulation

import (
	"time"
)

// ReissueOverdueRule controls whether an overdue loan may still be reissued.
// The source systems disagreed on this; it is an explicit policy here, with
// blocking as the default.
type ReissueOverdueRule int

const (
	// BlockWhenOverdue rejects reissue requests for loans whose due date has
	// passed. This is the default.
	BlockWhenOverdue ReissueOverdueRule = iota

	// AllowWhenOverdue permits reissuing an overdue loan; the new due date is
	// computed from today, which clears the overdue condition.
	AllowWhenOverdue
)

// String provides a readable representation for logging.
func (r ReissueOverdueRule) String() string {
	switch r {
	case BlockWhenOverdue:
		return "block-when-overdue"
	case AllowWhenOverdue:
		return "allow-when-overdue"
	default:
		return "unknown"
	}
}

// ReissuePolicy is the eligibility gate evaluated before a reissue
// transaction.
type ReissuePolicy struct {
	OverdueRule ReissueOverdueRule
}

// DefaultReissuePolicy blocks reissue of overdue loans.
func DefaultReissuePolicy() ReissuePolicy {
	return ReissuePolicy{OverdueRule: BlockWhenOverdue}
}

// CheckReissue evaluates the eligibility gates for reissuing a loan:
// no unpaid fine, reissue count below the limit, and (depending on the
// policy) the loan not being overdue. The first violated gate determines the
// returned error; nil means the reissue may proceed.
func (p ReissuePolicy) CheckReissue(
	loan LoanRecord,
	hasUnpaidFine bool,
	maxReissues int,
	asOf time.Time,
) error {

	if hasUnpaidFine {
		return ErrHasUnpaidFine
	}

	if loan.ReissueCount >= maxReissues {
		return ErrMaxReissuesReached
	}

	if p.OverdueRule == BlockWhenOverdue && loan.IsOverdue(asOf) {
		return ErrLoanOverdue
	}

	return nil
}
