package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memorelay/internal/client/config"
	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/cryptox"
)

var (
	errEmptyMemo   = errors.New("memo is empty")
	errMemoTooLong = fmt.Errorf("memo is too long (max %d bytes)", MaxMemoBytes)
)

// Seal reads the memo from the app input, encrypts it under a fresh passcode
// and uploads it. It returns the share link.
func (a *App) Seal(ctx context.Context) (string, error) {
	text, err := ReadMemo(a.in, MaxMemoBytes)
	if err != nil {
		return "", fmt.Errorf("read memo: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyMemo
	}
	if len(text) > MaxMemoBytes {
		return "", errMemoTooLong
	}

	if err := a.client.Health(ctx); err != nil {
		return "", fmt.Errorf("relay is not reachable: %w", err)
	}

	for attempt := 1; attempt <= MaxSealAttempts; attempt++ {
		id, err := common.RandomString(config.ClampLength(a.config.IDLength), a.alphabet)
		if err != nil {
			return "", err
		}
		passcode, err := common.RandomString(config.ClampLength(a.config.KeyLength), a.alphabet)
		if err != nil {
			return "", err
		}

		sealed, err := cryptox.SealWithIterations([]byte(text), passcode, a.iterations)
		if err != nil {
			return "", fmt.Errorf("encrypt memo: %w", err)
		}

		err = a.client.Put(ctx, id, sealed)
		if errors.Is(err, common.ErrCollision) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("upload memo: %w", err)
		}
		return BuildShareLink(a.client.BaseURL(), id, passcode), nil
	}

	return "", common.ErrTooManyCollisions
}
