// Package memos provides the storage backends for sealed memos: an in-process
// map, PostgreSQL and S3-compatible object storage. Every backend offers the
// same atomic primitives so that the memo cell logic stays backend-agnostic.
package memos

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/server/models"
)

// Repository stores at most one memo per id.
type Repository interface {
	// Insert stores m unless a live memo already holds m.ID, in which case it
	// returns common.ErrCollision. A memo that expired at or before
	// m.CreatedAt does not count as live and is replaced.
	Insert(ctx context.Context, m *models.Memo) error

	// Get returns the memo for id or common.ErrorNotFound. Expired memos are
	// returned as stored; the caller decides.
	Get(ctx context.Context, id string) (*models.Memo, error)

	// Take atomically returns and removes the memo for id, or returns
	// common.ErrorNotFound.
	Take(ctx context.Context, id string) (*models.Memo, error)

	// DeleteIfExpired removes the memo for id only if it expired at or before
	// now, and reports whether a memo was removed.
	DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error)

	// DeleteExpired removes every memo expired at or before now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
