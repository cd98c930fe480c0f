package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	colUsername     = "username"
	colPasswordHash = "password_hash"
	colRole         = "role"
	colUserStatus   = "status"
	colEmail        = "email"
	colLibrarianID  = "librarian_id"
	colName         = "name"

	logActionUserExists      = "user exists"
	logActionInsertUser      = "insert user"
	logActionDeleteUser      = "delete user"
	logActionSetUserStatus   = "set user status"
	logActionListUsers       = "list users"
	logActionMaxLibrarianID  = "max librarian id"
	logActionInsertLibrarian = "insert librarian"
	logActionFindLibrarian   = "find librarian"
	logActionDeleteLibrarian = "delete librarian"
	logActionListLibrarians  = "list librarians"

	logMsgLibrarianAdded   = "librarian added"
	logMsgLibrarianDeleted = "librarian deleted"
	logMsgUserStatusSet    = "user status changed"
)

// AdminService manages staff accounts: the users table holds the credential
// and role, the librarians table the staff record. Both rows are written in
// one transaction so an account never exists half-created.
type AdminService struct {
	engine *Engine
}

// AddLibrarian creates a librarian account. The password is hashed with the
// engine's credential hasher before it touches the database; username and
// email must be unused. The librarian id is generated from the highest
// existing id inside the same transaction.
func (a AdminService) AddLibrarian(ctx context.Context, session circulation.Session, username, password, name, email string) (circulation.Librarian, error) {
	observer, ctx := a.engine.startOperation(ctx, operationAddLibrarian, map[string]string{
		logAttrUsername: username,
	})

	var librarian circulation.Librarian

	txErr := a.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		usernameTaken, usernameErr := a.userFieldExists(ctx, dbh, colUsername, username)
		if usernameErr != nil {
			return usernameErr
		}
		if usernameTaken {
			return circulation.ErrDuplicateUsername
		}

		emailTaken, emailErr := a.userFieldExists(ctx, dbh, colEmail, email)
		if emailErr != nil {
			return emailErr
		}
		if emailTaken {
			return circulation.ErrDuplicateEmail
		}

		passwordHash, hashErr := a.engine.hasher.Hash(password)
		if hashErr != nil {
			return hashErr
		}

		lastID, maxErr := a.maxLibrarianID(ctx, dbh)
		if maxErr != nil {
			return maxErr
		}

		librarian = circulation.Librarian{
			LibrarianID: circulation.NextSequentialID(circulation.LibrarianIDPrefix, lastID),
			Username:    username,
			Name:        name,
		}

		user := circulation.User{
			Username:     username,
			PasswordHash: passwordHash,
			Role:         circulation.RoleLibrarian,
			Status:       circulation.UserActive,
			Email:        email,
		}

		if insertErr := a.insertUser(ctx, dbh, user); insertErr != nil {
			return insertErr
		}

		return a.insertLibrarian(ctx, dbh, librarian)
	})
	if txErr != nil {
		observer.failed(errorTypeOf(txErr))

		return circulation.Librarian{}, txErr
	}

	a.engine.logOperation(ctx, logMsgLibrarianAdded,
		logAttrUsername, username,
		logAttrActorID, session.ActorID,
	)
	observer.succeeded(map[string]string{logAttrUsername: username})

	return librarian, nil
}

// DeleteLibrarian removes a librarian record together with its user account.
func (a AdminService) DeleteLibrarian(ctx context.Context, session circulation.Session, librarianID string) error {
	deleteErr := a.engine.withTransaction(ctx, func(dbh adapters.DBHandle) error {
		librarian, findErr := a.findLibrarian(ctx, dbh, librarianID)
		if findErr != nil {
			return findErr
		}

		librarianQuery, _, buildErr := goqu.Dialect(dialectPostgres).
			Delete(a.engine.tables.Librarians).
			Where(goqu.Ex{colLibrarianID: librarianID}).
			ToSQL()
		if buildErr != nil {
			a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

			return buildErr
		}

		if _, _, execErr := a.engine.executeStatement(ctx, dbh, librarianQuery, logActionDeleteLibrarian); execErr != nil {
			return execErr
		}

		userQuery, _, buildErr := goqu.Dialect(dialectPostgres).
			Delete(a.engine.tables.Users).
			Where(goqu.Ex{colUsername: librarian.Username}).
			ToSQL()
		if buildErr != nil {
			a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

			return buildErr
		}

		_, _, execErr := a.engine.executeStatement(ctx, dbh, userQuery, logActionDeleteUser)

		return execErr
	})
	if deleteErr != nil {
		return deleteErr
	}

	a.engine.logOperation(ctx, logMsgLibrarianDeleted,
		"librarian_id", librarianID,
		logAttrActorID, session.ActorID,
	)

	return nil
}

// SetUserStatus activates or deactivates a user account. Returns
// circulation.ErrUserNotFound when no such account exists.
func (a AdminService) SetUserStatus(ctx context.Context, session circulation.Session, username string, status circulation.UserStatus) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(a.engine.tables.Users).
		Set(goqu.Record{colUserStatus: string(status)}).
		Where(goqu.Ex{colUsername: username}).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrUsername, username)

		return buildErr
	}

	rowsAffected, _, execErr := a.engine.executeStatement(ctx, a.engine.db, sqlQuery, logActionSetUserStatus)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return circulation.ErrUserNotFound
	}

	a.engine.logOperation(ctx, logMsgUserStatusSet,
		logAttrUsername, username,
		"status", string(status),
		logAttrActorID, session.ActorID,
	)

	return nil
}

// ListUsers returns all user accounts.
func (a AdminService) ListUsers(ctx context.Context) ([]circulation.User, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(a.engine.tables.Users).
		Select(colUsername, colPasswordHash, colRole, colUserStatus, colEmail).
		Order(goqu.C(colUsername).Asc()).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := a.engine.executeQuery(ctx, a.engine.db, sqlQuery, logActionListUsers)
	if queryErr != nil {
		return nil, queryErr
	}
	defer a.engine.closeRows(ctx, rows)

	users := make([]circulation.User, 0)

	for rows.Next() {
		var user circulation.User

		scanErr := rows.Scan(&user.Username, &user.PasswordHash, &user.Role, &user.Status, &user.Email)
		if scanErr != nil {
			a.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		users = append(users, user)
	}

	return users, nil
}

// ListLibrarians returns all librarian records.
func (a AdminService) ListLibrarians(ctx context.Context) ([]circulation.Librarian, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(a.engine.tables.Librarians).
		Select(colLibrarianID, colUsername, colName).
		Order(goqu.C(colLibrarianID).Asc()).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := a.engine.executeQuery(ctx, a.engine.db, sqlQuery, logActionListLibrarians)
	if queryErr != nil {
		return nil, queryErr
	}
	defer a.engine.closeRows(ctx, rows)

	librarians := make([]circulation.Librarian, 0)

	for rows.Next() {
		var librarian circulation.Librarian

		scanErr := rows.Scan(&librarian.LibrarianID, &librarian.Username, &librarian.Name)
		if scanErr != nil {
			a.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		librarians = append(librarians, librarian)
	}

	return librarians, nil
}

func (a AdminService) userFieldExists(ctx context.Context, dbh adapters.DBHandle, column string, value string) (bool, error) {
	exists := goqu.Dialect(dialectPostgres).
		From(a.engine.tables.Users).
		Select(goqu.L("1")).
		Where(goqu.Ex{column: value})

	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Select(goqu.L("EXISTS ?", exists)).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return false, buildErr
	}

	rows, _, queryErr := a.engine.executeQuery(ctx, dbh, sqlQuery, logActionUserExists)
	if queryErr != nil {
		return false, queryErr
	}
	defer a.engine.closeRows(ctx, rows)

	var taken bool
	if rows.Next() {
		if scanErr := rows.Scan(&taken); scanErr != nil {
			a.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return false, scanErr
		}
	}

	return taken, nil
}

func (a AdminService) maxLibrarianID(ctx context.Context, dbh adapters.DBHandle) (string, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(a.engine.tables.Librarians).
		Select(goqu.COALESCE(goqu.MAX(colLibrarianID), "")).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return "", buildErr
	}

	rows, _, queryErr := a.engine.executeQuery(ctx, dbh, sqlQuery, logActionMaxLibrarianID)
	if queryErr != nil {
		return "", queryErr
	}
	defer a.engine.closeRows(ctx, rows)

	var lastID string
	if rows.Next() {
		if scanErr := rows.Scan(&lastID); scanErr != nil {
			a.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return "", scanErr
		}
	}

	return lastID, nil
}

func (a AdminService) findLibrarian(ctx context.Context, dbh adapters.DBHandle, librarianID string) (circulation.Librarian, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(a.engine.tables.Librarians).
		Select(colLibrarianID, colUsername, colName).
		Where(goqu.Ex{colLibrarianID: librarianID}).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return circulation.Librarian{}, buildErr
	}

	rows, _, queryErr := a.engine.executeQuery(ctx, dbh, sqlQuery, logActionFindLibrarian)
	if queryErr != nil {
		return circulation.Librarian{}, queryErr
	}
	defer a.engine.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Librarian{}, circulation.ErrLibrarianNotFound
	}

	var librarian circulation.Librarian
	if scanErr := rows.Scan(&librarian.LibrarianID, &librarian.Username, &librarian.Name); scanErr != nil {
		a.engine.logError(ctx, logMsgScanRowFailed, scanErr)

		return circulation.Librarian{}, scanErr
	}

	return librarian, nil
}

func (a AdminService) insertUser(ctx context.Context, dbh adapters.DBHandle, user circulation.User) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(a.engine.tables.Users).
		Cols(colUsername, colPasswordHash, colRole, colUserStatus, colEmail).
		Vals(goqu.Vals{user.Username, user.PasswordHash, string(user.Role), string(user.Status), user.Email}).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrUsername, user.Username)

		return buildErr
	}

	_, _, execErr := a.engine.executeStatement(ctx, dbh, sqlQuery, logActionInsertUser)

	return execErr
}

func (a AdminService) insertLibrarian(ctx context.Context, dbh adapters.DBHandle, librarian circulation.Librarian) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(a.engine.tables.Librarians).
		Cols(colLibrarianID, colUsername, colName).
		Vals(goqu.Vals{librarian.LibrarianID, librarian.Username, librarian.Name}).
		ToSQL()
	if buildErr != nil {
		a.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return buildErr
	}

	_, _, execErr := a.engine.executeStatement(ctx, dbh, sqlQuery, logActionInsertLibrarian)

	return execErr
}
