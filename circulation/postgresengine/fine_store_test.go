package postgresengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

func fineRow(fineID int64, studentID string, issueID int64, amount float64, status circulation.FineStatus) []any {
	return []any{fineID, studentID, issueID, amount, fakeNow, string(status)}
}

func Test_MarkManyPaid_Settles_All_Fines(t *testing.T) {
	// arrange
	conn := newFakeConn(t,
		expectExec(`UPDATE "fines"`, 3),
	)
	engine := newTestEngine(t, conn, frozenClock())

	// act
	settled, err := engine.Fines().MarkManyPaid(context.Background(), []int64{11, 12, 13})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(3), settled)
	assert.Equal(t, 1, conn.committed)
	assert.Equal(t, 0, conn.rolledBack)
	conn.assertScriptExhausted()
}

func Test_MarkManyPaid_Is_AllOrNothing(t *testing.T) {
	// One of the three fines was settled by someone else in between. The
	// whole batch rolls back, none of them flips to Paid.
	conn := newFakeConn(t,
		expectExec(`UPDATE "fines"`, 2),
	)
	engine := newTestEngine(t, conn, frozenClock())

	settled, err := engine.Fines().MarkManyPaid(context.Background(), []int64{11, 12, 13})

	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	assert.Equal(t, int64(2), settled)
	assert.Equal(t, 0, conn.committed)
	assert.Equal(t, 1, conn.rolledBack)
	conn.assertScriptExhausted()
}

func Test_MarkManyPaid_With_No_FineIDs(t *testing.T) {
	conn := newFakeConn(t) // no statements expected
	engine := newTestEngine(t, conn, frozenClock())

	settled, err := engine.Fines().MarkManyPaid(context.Background(), nil)

	assert.NoError(t, err)
	assert.Zero(t, settled)
	assert.Equal(t, 0, conn.began)
	conn.assertScriptExhausted()
}

func Test_WaiveFine_Settles_The_Fine(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`UPDATE "fines"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	waived, err := engine.Fines().WaiveFine(context.Background(), 11)

	assert.NoError(t, err)
	assert.True(t, waived)
}

func Test_WaiveFine_When_The_Fine_Is_Already_Settled(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`UPDATE "fines"`, 0),
	)
	engine := newTestEngine(t, conn, frozenClock())

	waived, err := engine.Fines().WaiveFine(context.Background(), 11)

	assert.NoError(t, err)
	assert.False(t, waived)
}

func Test_ListUnpaidByStudent(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "fines"`,
			fineRow(12, "S001", 8, 3.0, circulation.FineUnpaid),
			fineRow(11, "S001", 7, 1.5, circulation.FineUnpaid),
		),
	)
	engine := newTestEngine(t, conn, frozenClock())

	fines, err := engine.Fines().ListUnpaidByStudent(context.Background(), "S001")

	assert.NoError(t, err)
	assert.Len(t, fines, 2)
	assert.Equal(t, int64(12), fines[0].FineID)
	assert.Equal(t, circulation.FineUnpaid, fines[1].Status)
	assert.InDelta(t, 1.5, fines[1].FineAmount, 0.0001)
}

func Test_ListUnpaidByStudent_When_Nothing_Is_Owed(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "fines"`),
	)
	engine := newTestEngine(t, conn, frozenClock())

	fines, err := engine.Fines().ListUnpaidByStudent(context.Background(), "S001")

	assert.NoError(t, err)
	assert.Empty(t, fines)
}

func Test_SumByMonth(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`EXTRACT(YEAR`, []any{float64(12.5)}),
	)
	engine := newTestEngine(t, conn, frozenClock())

	total, err := engine.Fines().SumByMonth(context.Background(), 2025, time.March)

	assert.NoError(t, err)
	assert.InDelta(t, 12.5, total, 0.0001)
}
