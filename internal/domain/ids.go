package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var alphabetSize = big.NewInt(int64(len(IDAlphabet)))

// GenerateID samples IDLength characters uniformly from IDAlphabet.
func GenerateID() string {
	buf := make([]byte, IDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic("generate id: " + err.Error())
		}
		buf[i] = IDAlphabet[n.Int64()]
	}
	return string(buf)
}

// IsValidID reports whether id has the generated shape.
func IsValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(IDAlphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
