package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PINLength is the number of ASCII digits in a room PIN.
const PINLength = 6

var pinSpace = big.NewInt(900000)

// NewID returns an opaque identifier for players, rounds and connections.
func NewID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// NewPIN returns a 6-digit room PIN in [100000, 999999].
// Uniqueness among live rooms is the caller's concern.
func NewPIN() string {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % pinSpace.Int64())
	}
	return strconv.FormatInt(100000+n.Int64(), 10)
}

// IsPIN reports whether s has the PIN shape.
func IsPIN(s string) bool {
	if len(s) != PINLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
