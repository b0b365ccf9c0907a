package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with bcrypt at the given
// cost.  The cost comes from configuration so tests can run cheap
// hashes while production stays at a slow work factor.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// The comparison is constant-time inside bcrypt.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
