package hash

import "errors"

// ErrEmptySecret is returned when a keyed hasher is built without a key.
var ErrEmptySecret = errors.New("hash: secret key is required")

// Hash computes and verifies digests of plaintext secrets.
type Hash interface {
	// Hash returns the hex encoded digest of str.
	Hash(str string) ([]byte, error)
	// Verify reports whether str matches the stored digest.
	Verify(hashed, str string) bool
}
