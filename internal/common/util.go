package common

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// RandomBase36 returns n characters drawn uniformly from [0-9a-z].
//
// Example:
//
//	s, err := RandomBase36(10)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(s) // e.g., "k3f9z0q2mx"
//
// It returns an error if the random number generator fails.
func RandomBase36(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	limit := big.NewInt(int64(len(base36Alphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = base36Alphabet[v.Int64()]
	}
	return string(b), nil
}

// IsUUID reports whether s is a UUID in the canonical 8-4-4-4-12 hex form.
// Braced, URN and compact forms are rejected.
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// ShortID returns the first 8 characters of id (or id itself when shorter).
func ShortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
