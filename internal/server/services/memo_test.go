package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/server/cells"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
	"github.com/dmitrijs2005/memorelay/internal/server/validation"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func b64(n int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, n))
}

func body(ciphertextLen int, kdf string) []byte {
	s := `{"ciphertext":"` + b64(ciphertextLen) + `","iv":"` + b64(models.IVSize) + `","salt":"` + b64(models.SaltSize) + `"`
	if kdf != "" {
		s += `,"kdf":` + kdf
	}
	return []byte(s + "}")
}

func newMemoService(t *testing.T, now *time.Time) (*MemoService, *memos.InMemoryRepository) {
	t.Helper()
	repo := memos.NewInMemoryRepository()
	loc := cells.NewLocator(repo, cells.WithClock(func() time.Time { return *now }))
	t.Cleanup(loc.Stop)
	return NewMemoService(loc, repo, nil), repo
}

func TestMemoService_SealOpen(t *testing.T) {
	now := t0
	svc, repo := newMemoService(t, &now)
	ctx := context.Background()

	m, err := svc.Seal(ctx, "AB12", body(32, `{"name":"PBKDF2","iterations":250000,"hash":"SHA-256"}`))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(models.MemoTTL), m.ExpiresAt)
	assert.Equal(t, 1, repo.Len())

	ok, err := svc.Exists(ctx, "AB12")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := svc.Open(ctx, "AB12")
	require.NoError(t, err)
	assert.Len(t, got.Ciphertext, 32)
	assert.Len(t, got.IV, models.IVSize)
	assert.Len(t, got.Salt, models.SaltSize)
	assert.JSONEq(t, `{"name":"PBKDF2","iterations":250000,"hash":"SHA-256"}`, string(got.KDF))

	_, err = svc.Open(ctx, "AB12")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoService_SealCollision(t *testing.T) {
	now := t0
	svc, _ := newMemoService(t, &now)
	ctx := context.Background()

	_, err := svc.Seal(ctx, "AB12", body(16, ""))
	require.NoError(t, err)
	_, err = svc.Seal(ctx, "AB12", body(16, ""))
	assert.ErrorIs(t, err, common.ErrCollision)
}

func TestMemoService_SealValidationLeavesStoreUntouched(t *testing.T) {
	now := t0
	svc, repo := newMemoService(t, &now)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		body []byte
		want error
	}{
		{"short id", "AB1", body(16, ""), validation.ErrInvalidIdentifier},
		{"long id", strings.Repeat("a", 33), body(16, ""), validation.ErrInvalidIdentifier},
		{"underscore", "AB_12", body(16, ""), validation.ErrInvalidIdentifier},
		{"bad json", "AB12", []byte("{"), validation.ErrInvalidJSON},
		{"missing salt", "AB12", []byte(`{"ciphertext":"AAAA","iv":"AAAA"}`), validation.ErrMissingField},
		{"wrong type", "AB12", []byte(`{"ciphertext":1,"iv":"AAAA","salt":"AAAA"}`), validation.ErrWrongType},
		{"kdf string", "AB12", body(16, `"PBKDF2"`), validation.ErrWrongType},
		{"too large", "AB12", body(models.MaxCiphertextBytes+1, ""), validation.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Seal(ctx, tt.id, tt.body)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, repo.Len())
		})
	}
}

func TestMemoService_InvalidIdentifierOnReadPaths(t *testing.T) {
	now := t0
	svc, _ := newMemoService(t, &now)
	ctx := context.Background()

	_, err := svc.Open(ctx, "a_b")
	assert.ErrorIs(t, err, validation.ErrInvalidIdentifier)

	_, err = svc.Exists(ctx, "a_b")
	assert.ErrorIs(t, err, validation.ErrInvalidIdentifier)
}

func TestMemoService_ExpiredLooksLikeMissing(t *testing.T) {
	now := t0
	svc, _ := newMemoService(t, &now)
	ctx := context.Background()

	_, err := svc.Seal(ctx, "AB12", body(16, ""))
	require.NoError(t, err)

	now = t0.Add(models.MemoTTL)

	ok, err := svc.Exists(ctx, "AB12")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Open(ctx, "AB12")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

type pingRepo struct {
	memos.Repository
	err error
}

func (p pingRepo) Ping(context.Context) error { return p.err }

func TestMemoService_Ping(t *testing.T) {
	repo := pingRepo{Repository: memos.NewInMemoryRepository(), err: errors.New("down")}
	loc := cells.NewLocator(repo)
	defer loc.Stop()

	svc := NewMemoService(loc, repo, nil)
	assert.EqualError(t, svc.Ping(context.Background()), "down")
}
