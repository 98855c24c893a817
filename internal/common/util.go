package common

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// GenerateRandByteArray returns n bytes from crypto/rand. It panics if the
// system random source fails, which is not recoverable for callers that need
// key material.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// RandomString returns a string of length n whose characters are sampled
// uniformly from charset.
func RandomString(n int, charset string) (string, error) {
	if charset == "" {
		return "", errors.New("empty charset")
	}
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, n)
	for i := range out {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[k.Int64()]
	}
	return string(out), nil
}
