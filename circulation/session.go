package circulation

// Role identifies the kind of user acting on the system.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleLibrarian Role = "Librarian"
	RoleStudent   Role = "Student"
)

// Session identifies the acting user for one operation. It is passed
// explicitly into every circulation call so that concurrent sessions never
// share state; there is no process-wide current user.
type Session struct {
	ActorID string
	Role    Role
}

// NewSession creates a session for the given actor.
func NewSession(actorID string, role Role) Session {
	return Session{ActorID: actorID, Role: role}
}

// CredentialHasher is the capability used to store and verify credentials.
// The circulation core never persists plaintext passwords; implementations
// wrap a proper password hashing scheme.
type CredentialHasher interface {
	Hash(plain string) (string, error)
	Verify(hashed string, plain string) bool
}
