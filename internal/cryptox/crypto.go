// Package cryptox holds the password-derived verifier scheme used for login.
// The password never leaves the client: it derives a key with Argon2id and
// sends only a SHA-256 verifier of that key.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLen       = 32
)

// DeriveMasterKey derives a 32-byte key from password and salt with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keyLen)
}

// MakeVerifier hashes a derived key into the value stored by the server.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// VerifierFor is DeriveMasterKey followed by MakeVerifier.
func VerifierFor(password, salt []byte) []byte {
	return MakeVerifier(DeriveMasterKey(password, salt))
}

// EqualVerifiers compares two verifiers in constant time.
func EqualVerifiers(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
