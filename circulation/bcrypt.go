package circulation

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the default CredentialHasher implementation.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the default bcrypt cost.
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash hashes a plaintext credential.
func (h BcryptHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}

	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash.
func (h BcryptHasher) Verify(hashed string, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// Ensure BcryptHasher implements CredentialHasher.
var _ CredentialHasher = BcryptHasher{}
