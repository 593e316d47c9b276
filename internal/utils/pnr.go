package utils

import (
	"crypto/rand"
	"math/big"
)

// PNRLength is the length of a booking confirmation code.
const PNRLength = 10

const pnrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewPNR returns a random confirmation code of PNRLength characters drawn
// from A-Z and 0-9.
func NewPNR() (string, error) {
	b := make([]byte, PNRLength)
	max := big.NewInt(int64(len(pnrAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = pnrAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ValidPNR reports whether s has the shape of a confirmation code.
func ValidPNR(s string) bool {
	if len(s) != PNRLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
