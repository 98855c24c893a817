// Package cryptox implements the client-side memo encryption: a passcode is
// stretched with PBKDF2-SHA256 into an AES-256-GCM key. The server only ever
// sees the ciphertext, IV, salt and KDF parameters.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dmitrijs2005/memorelay/internal/common"
)

const (
	DefaultIterations = 250000
	// MaxIterations bounds the work a memo's kdf parameters can demand.
	MaxIterations = 10000000
	KeySize           = 32
	SaltSize          = 16
	IVSize            = 12

	kdfName = "PBKDF2"
	kdfHash = "SHA-256"
)

// ErrDecrypt is returned when a memo cannot be opened with the given
// passcode. A wrong passcode and tampered data are indistinguishable.
var ErrDecrypt = errors.New("unable to decrypt memo")

// KDFParams describes how the key was derived. It travels with the memo.
type KDFParams struct {
	Name       string `json:"name"`
	Iterations int    `json:"iterations"`
	Hash       string `json:"hash"`
}

// SealedMemo is an encrypted memo ready to upload.
type SealedMemo struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
	KDF        KDFParams
}

// NormalizePasscode drops everything except ASCII letters and digits, so
// separators typed or pasted by the user do not change the key.
func NormalizePasscode(passcode string) string {
	var b strings.Builder
	b.Grow(len(passcode))
	for _, r := range passcode {
		if r < 0x80 && strings.ContainsRune(common.CharsetDigits+common.CharsetLower+common.CharsetUpper, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveKey stretches the normalized passcode into a 256-bit AES key.
func DeriveKey(passcode string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(NormalizePasscode(passcode)), salt, iterations, KeySize, sha256.New)
}

// Seal encrypts plaintext under passcode with a fresh random salt and IV.
func Seal(plaintext []byte, passcode string) (*SealedMemo, error) {
	return SealWithIterations(plaintext, passcode, DefaultIterations)
}

func SealWithIterations(plaintext []byte, passcode string, iterations int) (*SealedMemo, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	key := DeriveKey(passcode, salt, iterations)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return &SealedMemo{
		Ciphertext: aesgcm.Seal(nil, iv, plaintext, nil),
		IV:         iv,
		Salt:       salt,
		KDF:        KDFParams{Name: kdfName, Iterations: iterations, Hash: kdfHash},
	}, nil
}

// Open decrypts a memo. The iteration count is read from kdf and falls back
// to DefaultIterations when kdf is empty, null or carries none.
func Open(ciphertext, iv, salt []byte, kdf json.RawMessage, passcode string) ([]byte, error) {
	iterations, err := Iterations(kdf)
	if err != nil {
		return nil, err
	}

	key := DeriveKey(passcode, salt, iterations)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aesgcm.NonceSize() {
		return nil, ErrDecrypt
	}

	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Iterations extracts the PBKDF2 iteration count from raw KDF metadata.
func Iterations(kdf json.RawMessage) (int, error) {
	if len(kdf) == 0 || string(kdf) == "null" {
		return DefaultIterations, nil
	}

	var p KDFParams
	if err := json.Unmarshal(kdf, &p); err != nil {
		return 0, fmt.Errorf("invalid kdf parameters: %w", err)
	}
	if p.Iterations <= 0 {
		return DefaultIterations, nil
	}
	if p.Iterations > MaxIterations {
		return 0, fmt.Errorf("invalid kdf parameters: %d iterations exceeds %d", p.Iterations, MaxIterations)
	}
	return p.Iterations, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
