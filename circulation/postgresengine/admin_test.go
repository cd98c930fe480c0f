package postgresengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (stubHasher) Verify(hash, password string) bool { return hash == "hashed:"+password }

func adminSession() circulation.Session {
	return circulation.NewSession("A001", circulation.RoleAdmin)
}

func Test_AddLibrarian_Creates_User_And_Record(t *testing.T) {
	// arrange
	conn := newFakeConn(t,
		expectQuery(`EXISTS`, []any{false}), // username free
		expectQuery(`EXISTS`, []any{false}), // email free
		expectQuery(`MAX("librarian_id")`, []any{"L007"}),
		expectExec(`INSERT INTO "users"`, 1),
		expectExec(`INSERT INTO "librarians"`, 1),
	)
	engine := newTestEngine(t, conn, WithCredentialHasher(stubHasher{}))

	// act
	librarian, err := engine.Admin().AddLibrarian(context.Background(), adminSession(),
		"mkhan", "s3cret", "Maryam Khan", "maryam@example.org")

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "L008", librarian.LibrarianID)
	assert.Equal(t, "mkhan", librarian.Username)
	assert.Equal(t, "Maryam Khan", librarian.Name)
	assert.Equal(t, 1, conn.committed)
	conn.assertScriptExhausted()
}

func Test_AddLibrarian_When_The_Username_Is_Taken(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`EXISTS`, []any{true}),
	)
	engine := newTestEngine(t, conn, WithCredentialHasher(stubHasher{}))

	_, err := engine.Admin().AddLibrarian(context.Background(), adminSession(),
		"mkhan", "s3cret", "Maryam Khan", "maryam@example.org")

	assert.ErrorIs(t, err, circulation.ErrDuplicateUsername)
	assert.Equal(t, 1, conn.rolledBack)
}

func Test_AddLibrarian_When_The_Email_Is_Taken(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`EXISTS`, []any{false}),
		expectQuery(`EXISTS`, []any{true}),
	)
	engine := newTestEngine(t, conn, WithCredentialHasher(stubHasher{}))

	_, err := engine.Admin().AddLibrarian(context.Background(), adminSession(),
		"mkhan", "s3cret", "Maryam Khan", "maryam@example.org")

	assert.ErrorIs(t, err, circulation.ErrDuplicateEmail)
	assert.Equal(t, 1, conn.rolledBack)
}

func Test_DeleteLibrarian_Removes_Both_Rows(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "librarians"`, []any{"L008", "mkhan", "Maryam Khan"}),
		expectExec(`DELETE FROM "librarians"`, 1),
		expectExec(`DELETE FROM "users"`, 1),
	)
	engine := newTestEngine(t, conn)

	err := engine.Admin().DeleteLibrarian(context.Background(), adminSession(), "L008")

	assert.NoError(t, err)
	assert.Equal(t, 1, conn.committed)
	conn.assertScriptExhausted()
}

func Test_DeleteLibrarian_When_The_Librarian_Is_Unknown(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "librarians"`),
	)
	engine := newTestEngine(t, conn)

	err := engine.Admin().DeleteLibrarian(context.Background(), adminSession(), "L404")

	assert.ErrorIs(t, err, circulation.ErrLibrarianNotFound)
	assert.Equal(t, 1, conn.rolledBack)
}

func Test_SetUserStatus(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`UPDATE "users"`, 1),
	)
	engine := newTestEngine(t, conn)

	err := engine.Admin().SetUserStatus(context.Background(), adminSession(), "mkhan", circulation.UserInactive)

	assert.NoError(t, err)
}

func Test_SetUserStatus_When_The_User_Is_Unknown(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`UPDATE "users"`, 0),
	)
	engine := newTestEngine(t, conn)

	err := engine.Admin().SetUserStatus(context.Background(), adminSession(), "ghost", circulation.UserInactive)

	assert.ErrorIs(t, err, circulation.ErrUserNotFound)
}

func Test_ListUsers(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "users"`,
			[]any{"admin", "hashed:x", "Admin", "Active", "admin@example.org"},
			[]any{"mkhan", "hashed:y", "Librarian", "Inactive", "maryam@example.org"},
		),
	)
	engine := newTestEngine(t, conn)

	users, err := engine.Admin().ListUsers(context.Background())

	assert.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, circulation.RoleAdmin, users[0].Role)
	assert.Equal(t, circulation.UserInactive, users[1].Status)
}

func Test_ListLibrarians(t *testing.T) {
	conn := newFakeConn(t,
		expectQuery(`FROM "librarians"`,
			[]any{"L007", "jdoe", "Jordan Doe"},
			[]any{"L008", "mkhan", "Maryam Khan"},
		),
	)
	engine := newTestEngine(t, conn)

	librarians, err := engine.Admin().ListLibrarians(context.Background())

	assert.NoError(t, err)
	assert.Len(t, librarians, 2)
	assert.Equal(t, "L007", librarians[0].LibrarianID)
}
