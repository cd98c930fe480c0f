package postgresengine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/testutil/postgresengine/helper"
)

func Test_IssueBook_Records_Duration_Metrics_And_A_Span(t *testing.T) {
	// arrange
	metrics := helper.NewTestMetricsCollector(true)
	tracing := helper.NewTestTracingCollector(true)
	conn := newFakeConn(t,
		expectQuery(`EXISTS`, []any{true}),
		expectQuery(`FROM "books"`, bookRow("B001", 3, 2)),
		expectExec(`"available_copies"`, 1),
		expectQuery(`FROM "settings"`, []any{"14"}),
		expectQuery(`INSERT INTO "issued_books"`, []any{int64(7)}),
	)
	engine := newTestEngine(t, conn, frozenClock(), WithMetrics(metrics), WithTracing(tracing))

	// act
	_, err := engine.Circulation().IssueBook(context.Background(), librarianSession(), "B001", "S001")

	// assert
	assert.NoError(t, err)
	assert.True(t, metrics.HasDurationRecordForMetric("circulation_operation_duration_seconds").
		WithOperation("issue_book").
		WithStatus("success").
		Assert())
	assert.True(t, tracing.HasSpanRecordForName("circulation.issue_book").
		WithStatus("success").
		WithStartAttribute("book_id", "B001").
		Assert())
}

func Test_IssueBook_Failure_Records_An_Error_Counter(t *testing.T) {
	metrics := helper.NewTestMetricsCollector(true)
	tracing := helper.NewTestTracingCollector(true)
	conn := newFakeConn(t,
		expectQuery(`EXISTS`, []any{false}),
	)
	engine := newTestEngine(t, conn, frozenClock(), WithMetrics(metrics), WithTracing(tracing))

	_, err := engine.Circulation().IssueBook(context.Background(), librarianSession(), "B001", "S404")

	assert.ErrorIs(t, err, circulation.ErrStudentNotFound)
	assert.True(t, metrics.HasCounterRecordForMetric("circulation_operation_errors_total").
		WithOperation("issue_book").
		WithErrorType("student_not_found").
		Assert())
	assert.True(t, tracing.HasSpanRecordForName("circulation.issue_book").
		WithStatus("error").
		WithEndAttribute("error_type", "student_not_found").
		Assert())
}

func Test_IssueBook_Conflict_Records_A_Conflict_Counter(t *testing.T) {
	metrics := helper.NewTestMetricsCollector(true)
	conn := newFakeConn(t,
		expectQuery(`EXISTS`, []any{true}),
		expectQuery(`FROM "books"`, bookRow("B001", 3, 1)),
		expectExec(`"available_copies"`, 0),
	)
	engine := newTestEngine(t, conn, frozenClock(), WithMetrics(metrics))

	_, err := engine.Circulation().IssueBook(context.Background(), librarianSession(), "B001", "S001")

	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	assert.True(t, metrics.HasCounterRecordForMetric("circulation_concurrency_conflicts_total").
		WithOperation("issue_book").
		Assert())
}

func Test_ReturnBook_Late_Records_The_Accrued_Fine(t *testing.T) {
	metrics := helper.NewTestMetricsCollector(true)
	dueDate := fakeNow.AddDate(0, 0, -3)
	conn := newFakeConn(t,
		expectQuery(`FROM "issued_books"`, loanRow(7, "B001", "S001", dueDate, circulation.StatusIssued, 0)),
		expectExec(`'Returned'`, 1),
		expectQuery(`FROM "settings"`, []any{"2.0"}),
		expectExec(`UPDATE "fines"`, 1),
		expectExec(`SAVEPOINT`, 0),
		expectExec(`INSERT INTO "notifications"`, 1),
		expectExec(`RELEASE`, 0),
		expectExec(`"available_copies"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock(), WithMetrics(metrics))

	_, err := engine.Circulation().ReturnBook(context.Background(), librarianSession(), "B001", "S001")

	assert.NoError(t, err)
	assert.True(t, metrics.HasValueRecordForMetric("circulation_fines_accrued_total").
		WithOperation("return_book").
		Assert())
}

func Test_Engine_Logs_Executed_SQL_At_Debug_Level(t *testing.T) {
	logHandler := helper.NewTestLogHandler(false)
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 2)),
	)
	engine := newTestEngine(t, conn, frozenClock(), WithLogger(slog.New(logHandler)))

	_, err := engine.Inventory().FindBook(context.Background(), "B001")

	assert.NoError(t, err)
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: find book").
		WithDurationMS().
		Assert())
}

func Test_Engine_Warns_On_Setting_Fallback(t *testing.T) {
	logHandler := helper.NewTestLogHandler(false)
	conn := newFakeConn(t,
		expectQuery(`FROM "settings"`), // key absent
	)
	engine := newTestEngine(t, conn, frozenClock(), WithLogger(slog.New(logHandler)))

	value := engine.Settings().GetInt(context.Background(), circulation.SettingBorrowPeriodDays, 14)

	assert.Equal(t, 14, value)
	assert.True(t, logHandler.HasWarnLogWithMessage("setting missing or malformed, using default").
		WithAttr("setting_key", circulation.SettingBorrowPeriodDays).
		Assert())
}

func Test_ContextualLogger_Takes_Precedence(t *testing.T) {
	logHandler := helper.NewTestLogHandler(false)
	contextual := helper.NewTestContextualLogger(true)
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 2)),
	)
	engine := newTestEngine(t, conn, frozenClock(),
		WithLogger(slog.New(logHandler)),
		WithContextualLogger(contextual))

	_, err := engine.Inventory().FindBook(context.Background(), "B001")

	assert.NoError(t, err)
	assert.True(t, contextual.HasDebugLog("executed sql for: find book"))
	assert.Zero(t, logHandler.GetRecordCount())
}

func Test_Operations_Without_Collaborators_Do_Not_Panic(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 2)),
	)
	engine := newTestEngine(t, conn, frozenClock())

	_, err := engine.Inventory().FindBook(context.Background(), "B001")

	assert.NoError(t, err)
}

func Test_ErrorTypeOf_Maps_Known_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{"book not found", circulation.ErrBookNotFound, "book_not_found"},
		{"student not found", circulation.ErrStudentNotFound, "student_not_found"},
		{"concurrency conflict", circulation.ErrConcurrencyConflict, "concurrency_conflict"},
		{"storage failure", circulation.ErrStorageFailure, "storage_failure"},
		{"unknown error", assert.AnError, "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, errorTypeOf(tc.err))
		})
	}
}
