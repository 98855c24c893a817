// Package validation holds the pure checks applied to memo identifiers and
// payloads before any memo cell is touched.
package validation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/memorelay/internal/server/models"
)

var (
	ErrInvalidIdentifier = errors.New("invalid id")
	ErrInvalidJSON       = errors.New("invalid JSON")
	ErrMissingField      = errors.New("missing ciphertext, iv, or salt")
	ErrWrongType         = errors.New("wrong field type")
	ErrInvalidIV         = errors.New("invalid iv")
	ErrInvalidSalt       = errors.New("invalid salt")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrPayloadTooLarge   = errors.New("payload too large")
)

const (
	MinIdentifierLen = 4
	MaxIdentifierLen = 32
)

var (
	identifierRe = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9]{%d,%d}$`, MinIdentifierLen, MaxIdentifierLen))
	// Canonical padded standard base64: full quads, optional final padded quad.
	base64Re = regexp.MustCompile(`^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?$`)
)

// Payload is the client body of a seal request with fields still encoded.
type Payload struct {
	Ciphertext string
	IV         string
	Salt       string
	KDF        json.RawMessage
}

// ValidateIdentifier checks that id is 4–32 ASCII letters or digits.
func ValidateIdentifier(id string) error {
	if !identifierRe.MatchString(id) {
		return ErrInvalidIdentifier
	}
	return nil
}

// ValidatePayloadShape parses body and checks that ciphertext, iv and salt are
// non-empty strings and that kdf, when given, is an object or null.
func ValidatePayloadShape(body []byte) (*Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, ErrInvalidJSON
	}

	p := &Payload{}
	fields := []struct {
		name string
		dst  *string
	}{
		{"ciphertext", &p.Ciphertext},
		{"iv", &p.IV},
		{"salt", &p.Salt},
	}
	for _, f := range fields {
		v, ok := raw[f.name]
		if !ok || isNull(v) {
			return nil, ErrMissingField
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, ErrWrongType
		}
		if *f.dst == "" {
			return nil, ErrMissingField
		}
	}

	if kdf, ok := raw["kdf"]; ok && !isNull(kdf) {
		// kdf is stored verbatim but must be an object, never a bare scalar or array.
		if bytes.TrimSpace(kdf)[0] != '{' {
			return nil, ErrWrongType
		}
		p.KDF = kdf
	}

	return p, nil
}

// ValidateFieldSizes checks encoding and decoded length of each field without
// decoding it.
func ValidateFieldSizes(p *Payload) error {
	if n, ok := DecodedLen(p.IV); !ok || n != models.IVSize {
		return ErrInvalidIV
	}
	if n, ok := DecodedLen(p.Salt); !ok || n != models.SaltSize {
		return ErrInvalidSalt
	}
	n, ok := DecodedLen(p.Ciphertext)
	if !ok {
		return ErrInvalidCiphertext
	}
	if n > models.MaxCiphertextBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// DecodedLen returns the number of bytes s decodes to as padded standard
// base64. ok is false when s is not well-formed.
func DecodedLen(s string) (n int, ok bool) {
	if len(s)%4 != 0 || !base64Re.MatchString(s) {
		return 0, false
	}
	pad := len(s) - len(strings.TrimRight(s, "="))
	return len(s)/4*3 - pad, true
}

// Validate runs every check in order and returns the decoded memo fields.
func Validate(id string, body []byte) (*Payload, error) {
	if err := ValidateIdentifier(id); err != nil {
		return nil, err
	}
	p, err := ValidatePayloadShape(body)
	if err != nil {
		return nil, err
	}
	if err := ValidateFieldSizes(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Decode converts a validated payload to raw bytes.
func (p *Payload) Decode() (ciphertext, iv, salt []byte, err error) {
	enc := base64.StdEncoding
	if ciphertext, err = enc.DecodeString(p.Ciphertext); err != nil {
		return nil, nil, nil, ErrInvalidCiphertext
	}
	if iv, err = enc.DecodeString(p.IV); err != nil {
		return nil, nil, nil, ErrInvalidIV
	}
	if salt, err = enc.DecodeString(p.Salt); err != nil {
		return nil, nil, nil, ErrInvalidSalt
	}
	return ciphertext, iv, salt, nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
