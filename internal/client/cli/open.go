package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/cryptox"
)

var (
	errNoTarget  = errors.New("a link or identifier is required")
	errMemoGone  = errors.New("memo not found or already destroyed")
	errWrongCode = errors.New("unable to decrypt memo: wrong passcode or corrupted data; the memo has been destroyed")
)

// Open fetches the memo named by args, which burns it on the server, and
// prints the plaintext. When no passcode is given it is prompted for before
// anything is fetched.
func (a *App) Open(ctx context.Context, args []string) error {
	id, passcode, err := target(args)
	if err != nil {
		return err
	}

	if passcode == "" {
		if passcode, err = GetPasscode(a.errOut); err != nil {
			return fmt.Errorf("read passcode: %w", err)
		}
		if passcode == "" {
			return errors.New("passcode is required")
		}
	}

	m, err := a.client.Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return errMemoGone
	}
	if err != nil {
		return err
	}

	plaintext, err := cryptox.Open(m.Ciphertext, m.IV, m.Salt, m.KDF, passcode)
	if errors.Is(err, cryptox.ErrDecrypt) {
		return errWrongCode
	}
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	_, err = fmt.Fprintln(a.out, string(plaintext))
	return err
}

// target resolves "<link>" or "<id> [passcode]".
func target(args []string) (id, passcode string, err error) {
	if len(args) == 0 {
		return "", "", errNoTarget
	}
	if strings.ContainsAny(args[0], "/#") {
		return ParseShareLink(args[0])
	}
	id = args[0]
	if len(args) > 1 {
		passcode = args[1]
	}
	return id, passcode, nil
}
