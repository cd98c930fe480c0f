package circulation

import "context"

// ConsistencyLevel defines the consistency requirements for engine operations.
type ConsistencyLevel int

const (
	// StrongConsistency requires reads from the primary database to ensure
	// read-after-write consistency. This is the default for circulation
	// operations, which perform read-check-write sequences and must see their
	// own writes immediately.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from replica databases, trading
	// consistency for performance. Suitable for reporting queries that can
	// tolerate slightly stale data in exchange for a reduced load on the
	// primary database.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "circulation.consistency_level"

// WithStrongConsistency returns a context that signals engine operations
// should use the primary database for strong consistency guarantees.
//
// Example usage:
//
//	ctx = circulation.WithStrongConsistency(ctx)
//	loans, err := reports.OpenLoans(ctx, "")
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that signals engine operations
// may use replica databases, trading consistency for performance.
//
// This is typically used by the reporting queries, for which stale reads are
// acceptable.
//
// Example usage:
//
//	ctx = circulation.WithEventualConsistency(ctx)
//	loans, err := reports.OpenLoans(ctx, "")
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context.
// If no consistency level is set, it returns StrongConsistency as the safe
// default for transactional circulation operations.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}
	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
