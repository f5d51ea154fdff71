package ports

// PasswordHasher hashes credentials for storage and verifies them at login.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Compare reports a mismatch as false with a nil error. Only a malformed
	// stored hash yields an error.
	Compare(plaintext, hashed string) (bool, error)
}
