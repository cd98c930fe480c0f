package postgresengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

func Test_AddBook_Generates_The_Next_BookID(t *testing.T) {
	// arrange
	conn := newFakeConn(t,
		expectQuery(`MAX("book_id")`, []any{"B041"}),
		expectExec(`INSERT INTO "books"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	// act
	book, err := engine.Inventory().AddBook(context.Background(), "Refactoring", "Martin Fowler", "Software Design", 3)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "B042", book.BookID)
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.Equal(t, 1, conn.committed)
	conn.assertScriptExhausted()
}

func Test_AddBook_Into_An_Empty_Inventory(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`MAX("book_id")`, []any{""}),
		expectExec(`INSERT INTO "books"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	book, err := engine.Inventory().AddBook(context.Background(), "Refactoring", "Martin Fowler", "Software Design", 1)

	assert.NoError(t, err)
	assert.Equal(t, "B001", book.BookID)
}

func Test_FindBook(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 2)),
	)
	engine := newTestEngine(t, conn, frozenClock())

	book, err := engine.Inventory().FindBook(context.Background(), "B001")

	assert.NoError(t, err)
	assert.Equal(t, "B001", book.BookID)
	assert.Equal(t, "Learning Domain-Driven Design", book.Title)
	assert.Equal(t, 2, book.AvailableCopies)
}

func Test_FindBook_When_The_Book_Is_Unknown(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`),
	)
	engine := newTestEngine(t, conn, frozenClock())

	_, err := engine.Inventory().FindBook(context.Background(), "B404")

	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_UpdateBook(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`UPDATE "books"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	err := engine.Inventory().UpdateBook(context.Background(), "B001", "Refactoring", "Martin Fowler", "Software Design", 5)

	assert.NoError(t, err)
	conn.assertScriptExhausted()
}

func Test_UpdateBook_When_The_Book_Is_Unknown(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`UPDATE "books"`, 0),
	)
	engine := newTestEngine(t, conn, frozenClock())

	err := engine.Inventory().UpdateBook(context.Background(), "B404", "Refactoring", "Martin Fowler", "Software Design", 5)

	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_RemoveBook(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 3)),
		expectExec(`DELETE FROM "books"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	err := engine.Inventory().RemoveBook(context.Background(), "B001")

	assert.NoError(t, err)
	assert.Equal(t, 1, conn.committed)
	conn.assertScriptExhausted()
}

func Test_RemoveBook_While_Copies_Are_On_Loan(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 2)),
	)
	engine := newTestEngine(t, conn, frozenClock())

	err := engine.Inventory().RemoveBook(context.Background(), "B001")

	assert.ErrorIs(t, err, circulation.ErrBookStillIssued)
	assert.Equal(t, 1, conn.rolledBack)
}

func Test_RemoveBook_When_A_Copy_Is_Issued_Concurrently(t *testing.T) {
	// The pre-check saw all copies on the shelf but the guarded delete found
	// one missing.
	conn := newFakeConn(t,
		expectQuery(`FROM "books"`, bookRow("B001", 3, 3)),
		expectExec(`DELETE FROM "books"`, 0),
	)
	engine := newTestEngine(t, conn, frozenClock())

	err := engine.Inventory().RemoveBook(context.Background(), "B001")

	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	assert.Equal(t, 0, conn.committed)
	assert.Equal(t, 1, conn.rolledBack)
	conn.assertScriptExhausted()
}
