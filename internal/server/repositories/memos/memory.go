package memos

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
)

// InMemoryRepository keeps memos in a map. Contents are lost on restart.
type InMemoryRepository struct {
	mu    sync.Mutex
	memos map[string]models.Memo
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{memos: make(map[string]models.Memo)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, m *models.Memo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.memos[m.ID]; ok && !cur.IsExpired(m.CreatedAt) {
		return common.ErrCollision
	}
	r.memos[m.ID] = clone(m)
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*models.Memo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memos[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := clone(&m)
	return &out, nil
}

func (r *InMemoryRepository) Take(ctx context.Context, id string) (*models.Memo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memos[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.memos, id)
	return &m, nil
}

func (r *InMemoryRepository) DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memos[id]
	if !ok || !m.IsExpired(now) {
		return false, nil
	}
	delete(r.memos, id)
	return true, nil
}

func (r *InMemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, m := range r.memos {
		if m.IsExpired(now) {
			delete(r.memos, id)
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored memos, expired ones included.
func (r *InMemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memos)
}

func clone(m *models.Memo) models.Memo {
	c := *m
	c.Ciphertext = append([]byte(nil), m.Ciphertext...)
	c.IV = append([]byte(nil), m.IV...)
	c.Salt = append([]byte(nil), m.Salt...)
	if m.KDF != nil {
		c.KDF = append([]byte(nil), m.KDF...)
	}
	return c
}
