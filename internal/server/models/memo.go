// Package models defines server-side data models persisted by the memo
// repositories.
package models

import (
	"encoding/json"
	"time"
)

const (
	// MemoTTL is the fixed lifetime of a sealed memo, counted from acceptance.
	MemoTTL = 30 * time.Minute

	IVSize   = 12
	SaltSize = 16

	// MaxPlaintextBytes is the plaintext budget of a memo; AuthTagSize covers
	// the AES-GCM tag appended to the ciphertext.
	MaxPlaintextBytes  = 2000
	AuthTagSize        = 16
	MaxCiphertextBytes = MaxPlaintextBytes + AuthTagSize
)

// Memo is a sealed record. It is never mutated after creation: a cell either
// holds it unchanged or does not hold it at all.
type Memo struct {
	ID         string
	Ciphertext []byte
	IV         []byte
	Salt       []byte
	// KDF is client-supplied key-derivation metadata, stored verbatim.
	KDF       json.RawMessage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewMemo builds a memo accepted at now. ExpiresAt is derived from MemoTTL.
func NewMemo(id string, ciphertext, iv, salt []byte, kdf json.RawMessage, now time.Time) *Memo {
	return &Memo{
		ID:         id,
		Ciphertext: ciphertext,
		IV:         iv,
		Salt:       salt,
		KDF:        kdf,
		CreatedAt:  now,
		ExpiresAt:  now.Add(MemoTTL),
	}
}

// IsExpired reports whether the memo is past its lifetime at instant now.
// A memo is absent from ExpiresAt onwards.
func (m *Memo) IsExpired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
