package cells

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
)

// Cell is a handle to the lifecycle of one identifier. It is Empty when no
// live memo is stored under the identifier and Sealed otherwise.
type Cell struct {
	id  string
	loc *Locator
}

// Create seals a memo accepted now. It fails with common.ErrCollision while a
// live memo occupies the cell; an expired one is replaced.
func (c *Cell) Create(ctx context.Context, ciphertext, iv, salt []byte, kdf json.RawMessage) (*models.Memo, error) {
	release, err := c.loc.acquire(ctx, c.id)
	if err != nil {
		return nil, err
	}
	defer release()

	m := models.NewMemo(c.id, ciphertext, iv, salt, kdf, c.loc.clock())
	if err := c.loc.repo.Insert(ctx, m); err != nil {
		return nil, err
	}

	c.loc.timers.Schedule(c.id, m.ExpiresAt.Sub(m.CreatedAt))
	return m, nil
}

// Read burns the memo: it is returned at most once. Absent and expired memos
// both yield common.ErrorNotFound.
func (c *Cell) Read(ctx context.Context) (*models.Memo, error) {
	release, err := c.loc.acquire(ctx, c.id)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := c.loc.repo.Take(ctx, c.id)
	if err != nil {
		return nil, err
	}
	c.loc.timers.Cancel(c.id)

	if m.IsExpired(c.loc.clock()) {
		return nil, common.ErrorNotFound
	}
	return m, nil
}

// Peek reports whether a live memo is present without consuming it.
func (c *Cell) Peek(ctx context.Context) (bool, error) {
	release, err := c.loc.acquire(ctx, c.id)
	if err != nil {
		return false, err
	}
	defer release()

	m, err := c.loc.repo.Get(ctx, c.id)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := c.loc.clock()
	if !m.IsExpired(now) {
		return true, nil
	}

	if _, err := c.loc.repo.DeleteIfExpired(ctx, c.id, now); err != nil {
		return false, err
	}
	c.loc.timers.Cancel(c.id)
	return false, nil
}

// Expire deletes the memo if it has expired at firedAt. It is a no-op on an
// empty cell or when the memo was replaced by a newer one, so repeated or
// stale deliveries are harmless.
func (c *Cell) Expire(ctx context.Context, firedAt time.Time) error {
	release, err := c.loc.acquire(ctx, c.id)
	if err != nil {
		return err
	}
	defer release()

	_, err = c.loc.repo.DeleteIfExpired(ctx, c.id, firedAt)
	return err
}
