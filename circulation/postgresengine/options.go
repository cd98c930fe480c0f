package postgresengine

import (
	"time"

	"github.com/shelfwise/library-circulation-go/circulation"
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithTableNames overrides the default table names. Empty fields keep their
// defaults.
func WithTableNames(tables TableNames) Option {
	return func(e *Engine) error {
		overrides := []struct {
			name   string
			target *string
		}{
			{tables.Books, &e.tables.Books},
			{tables.Students, &e.tables.Students},
			{tables.IssuedBooks, &e.tables.IssuedBooks},
			{tables.Fines, &e.tables.Fines},
			{tables.Settings, &e.tables.Settings},
			{tables.Notifications, &e.tables.Notifications},
			{tables.Users, &e.tables.Users},
			{tables.Librarians, &e.tables.Librarians},
			{tables.BookRequests, &e.tables.BookRequests},
		}

		for _, o := range overrides {
			if o.name != "" {
				*o.target = o.name
			}
		}

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Operation outcomes, conflicts, fine amounts (production-safe)
// Warn level: Non-critical issues like missing settings or cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger circulation.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for the Engine. When both
// loggers are configured, the contextual logger takes precedence so that log
// records carry trace correlation.
func WithContextualLogger(logger circulation.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
func WithTracing(collector circulation.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}

// WithClock overrides the time source. Intended for tests that need
// deterministic issue dates, due dates, and fine amounts.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		e.clock = clock
		return nil
	}
}

// WithReissuePolicy overrides the reissue eligibility policy.
func WithReissuePolicy(policy circulation.ReissuePolicy) Option {
	return func(e *Engine) error {
		e.reissuePolicy = policy
		return nil
	}
}

// WithCredentialHasher overrides the credential hashing scheme used by the
// admin service. The default is bcrypt.
func WithCredentialHasher(hasher circulation.CredentialHasher) Option {
	return func(e *Engine) error {
		e.hasher = hasher
		return nil
	}
}
