// Package services contains server-side business logic. MemoService accepts,
// burns and probes sealed memos on behalf of the transport layer.
package services

import (
	"context"

	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/cells"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
	"github.com/dmitrijs2005/memorelay/internal/server/validation"
)

// MemoService validates input before any cell is touched and then delegates
// to the cell that owns the identifier.
type MemoService struct {
	locator *cells.Locator
	repo    memos.Repository
	logger  logging.Logger
}

func NewMemoService(locator *cells.Locator, repo memos.Repository, logger logging.Logger) *MemoService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &MemoService{locator: locator, repo: repo, logger: logger}
}

// Seal validates body and stores it under id. Validation failures are
// returned as validation sentinel errors; a live memo under id yields
// common.ErrCollision.
func (s *MemoService) Seal(ctx context.Context, id string, body []byte) (*models.Memo, error) {
	p, err := validation.Validate(id, body)
	if err != nil {
		return nil, err
	}

	ciphertext, iv, salt, err := p.Decode()
	if err != nil {
		return nil, err
	}

	m, err := s.locator.Resolve(id).Create(ctx, ciphertext, iv, salt, p.KDF)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "memo sealed", "id", id, "expires_at", m.ExpiresAt)
	return m, nil
}

// Open burns the memo under id and returns it.
func (s *MemoService) Open(ctx context.Context, id string) (*models.Memo, error) {
	if err := validation.ValidateIdentifier(id); err != nil {
		return nil, err
	}

	m, err := s.locator.Resolve(id).Read(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "memo burned", "id", id)
	return m, nil
}

// Exists reports whether a live memo is stored under id.
func (s *MemoService) Exists(ctx context.Context, id string) (bool, error) {
	if err := validation.ValidateIdentifier(id); err != nil {
		return false, err
	}
	return s.locator.Resolve(id).Peek(ctx)
}

// Ping checks that the backing store answers.
func (s *MemoService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
