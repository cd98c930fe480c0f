package circulation

// UserStatus is the persisted account status. The string values are part of
// the storage contract and must not change.
type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// User is a login account. PasswordHash is always a hashed credential, the
// core never stores plaintext.
type User struct {
	Username     string
	PasswordHash string
	Role         Role
	Status       UserStatus
	Email        string
}

// Librarian is the staff record linked to a User account by username.
type Librarian struct {
	LibrarianID string
	Username    string
	Name        string
}
