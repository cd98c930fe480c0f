package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfwise/library-circulation-go/circulation"
)

const (
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgBuildQueryFailed   = "failed to build sql statement"
	logMsgBeginTxFailed      = "failed to begin transaction"
	logMsgCommitFailed       = "failed to commit transaction"
	logMsgRollbackFailed     = "failed to roll back transaction"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "circulation operation: "
	logMsgSettingFallback    = "setting missing or malformed, using default"
	logMsgIncrementLost      = "availability increment affected no rows, book may have been removed"
	logMsgConflict           = "concurrency conflict detected"

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrDurationMS   = "duration_ms"
	logAttrBookID       = "book_id"
	logAttrStudentID    = "student_id"
	logAttrIssueID      = "issue_id"
	logAttrFineAmount   = "fine_amount"
	logAttrSettingKey   = "setting_key"
	logAttrRowsAffected = "rows_affected"
	logAttrLoanCount    = "loan_count"
	logAttrUsername     = "username"
	logAttrActorID      = "actor_id"
)

const (
	operationIssueBook     = "issue_book"
	operationReturnBook    = "return_book"
	operationReissueBook   = "reissue_book"
	operationCalculateFine = "calculate_fine"
	operationSweepOverdue  = "sweep_overdue"
	operationAddLibrarian  = "add_librarian"

	spanNamePrefix    = "circulation."
	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"
	spanAttrDuration  = "duration_ms"

	metricOperationDuration   = "circulation_operation_duration_seconds"
	metricOperationErrors     = "circulation_operation_errors_total"
	metricConcurrencyConflict = "circulation_concurrency_conflicts_total"
	metricFinesAccrued        = "circulation_fines_accrued_total"

	statusSuccess = "success"
	statusError   = "error"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
// The contextual logger takes precedence when both loggers are configured.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action,
			logAttrDurationMS, e.durationToMilliseconds(duration), logAttrQuery, sqlQuery)

	case e.logger != nil:
		e.logger.Debug(logMsgSQLExecuted+action,
			logAttrDurationMS, e.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (e *Engine) logOperation(ctx context.Context, action string, args ...any) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)

	case e.logger != nil:
		e.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level.
func (e *Engine) logWarn(ctx context.Context, message string, args ...any) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.WarnContext(ctx, message, args...)

	case e.logger != nil:
		e.logger.Warn(message, args...)
	}
}

// logError logs error information at error level.
func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)

	case e.logger != nil:
		e.logger.Error(message, allArgs...)
	}
}

// recordDurationMetrics records an operation duration, preferring the
// context-aware collector methods when the collector supports them.
func (e *Engine) recordDurationMetrics(ctx context.Context, operation string, duration time.Duration, status string) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextual, ok := e.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
	} else {
		e.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
	}
}

// recordErrorMetrics records an operation error counter.
func (e *Engine) recordErrorMetrics(ctx context.Context, operation string, errorType string) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextual, ok := e.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricOperationErrors, labels)
	} else {
		e.metricsCollector.IncrementCounter(metricOperationErrors, labels)
	}
}

// recordConflictMetrics records a concurrency conflict counter.
func (e *Engine) recordConflictMetrics(ctx context.Context, operation string) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"conflict_type":   "concurrency",
	}

	if contextual, ok := e.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricConcurrencyConflict, labels)
	} else {
		e.metricsCollector.IncrementCounter(metricConcurrencyConflict, labels)
	}
}

// recordFineMetrics records the accrued fine amount.
func (e *Engine) recordFineMetrics(ctx context.Context, operation string, amount float64) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusSuccess,
	}

	if contextual, ok := e.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metricFinesAccrued, amount, labels)
	} else {
		e.metricsCollector.RecordValue(metricFinesAccrued, amount, labels)
	}
}

// operationObserver encapsulates the tracing span and metrics lifecycle of one
// circulation operation. Both collectors are optional; with neither
// configured the observer is inert.
type operationObserver struct {
	engine    *Engine
	ctx       context.Context
	operation string
	span      circulation.SpanContext
	start     time.Time
}

// startOperation opens a tracing span for the operation and returns the
// observer together with the (possibly span-carrying) context.
func (e *Engine) startOperation(ctx context.Context, operation string, attrs map[string]string) (*operationObserver, context.Context) {
	observer := &operationObserver{
		engine:    e,
		operation: operation,
		start:     e.clock(),
	}

	if e.tracingCollector != nil {
		spanAttrs := map[string]string{spanAttrOperation: operation}
		for key, value := range attrs {
			spanAttrs[key] = value
		}

		ctx, observer.span = e.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, spanAttrs)
	}

	observer.ctx = ctx

	return observer, ctx
}

// succeeded finishes the span and records success metrics.
func (o *operationObserver) succeeded(attrs map[string]string) {
	duration := time.Since(o.start)
	o.engine.recordDurationMetrics(o.ctx, o.operation, duration, statusSuccess)

	if o.span == nil {
		return
	}

	o.span.SetStatus(statusSuccess)
	o.span.AddAttribute(spanAttrDuration, formatMilliseconds(duration))

	for key, value := range attrs {
		o.span.AddAttribute(key, value)
	}

	o.engine.tracingCollector.FinishSpan(o.span, statusSuccess, attrs)
}

// failed finishes the span and records error metrics.
func (o *operationObserver) failed(errorType string) {
	duration := time.Since(o.start)
	o.engine.recordDurationMetrics(o.ctx, o.operation, duration, statusError)
	o.engine.recordErrorMetrics(o.ctx, o.operation, errorType)

	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorType)
	o.span.AddAttribute(spanAttrDuration, formatMilliseconds(duration))

	o.engine.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

// conflicted records a concurrency conflict and finishes the span as an error.
func (o *operationObserver) conflicted() {
	o.engine.recordConflictMetrics(o.ctx, o.operation)
	o.failed("concurrency_conflict")
}

func formatMilliseconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}

// errorTypeOf maps an operation error to a low-cardinality label value for
// metrics and span attributes.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, circulation.ErrBookNotFound):
		return "book_not_found"
	case errors.Is(err, circulation.ErrStudentNotFound):
		return "student_not_found"
	case errors.Is(err, circulation.ErrLoanNotFound):
		return "loan_not_found"
	case errors.Is(err, circulation.ErrBookNotAvailable):
		return "book_not_available"
	case errors.Is(err, circulation.ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, circulation.ErrHasUnpaidFine):
		return "unpaid_fine"
	case errors.Is(err, circulation.ErrMaxReissuesReached):
		return "max_reissues"
	case errors.Is(err, circulation.ErrLoanOverdue):
		return "loan_overdue"
	case errors.Is(err, circulation.ErrBookStillIssued):
		return "book_still_issued"
	case errors.Is(err, circulation.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, circulation.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, circulation.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, circulation.ErrStorageFailure):
		return "storage_failure"
	default:
		return "unknown"
	}
}
