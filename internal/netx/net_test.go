package netx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/cryptox"
	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/cells"
	"github.com/dmitrijs2005/memorelay/internal/server/httpapi"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
	"github.com/dmitrijs2005/memorelay/internal/server/services"
)

func newRelay(t *testing.T) *httptest.Server {
	t.Helper()
	repo := memos.NewInMemoryRepository()
	loc := cells.NewLocator(repo)
	t.Cleanup(loc.Stop)

	h := httpapi.NewHandler(services.NewMemoService(loc, repo, nil), logging.Nop(), 64*1024)
	ts := httptest.NewServer(httpapi.NewRouter(h, "", logging.Nop()))
	t.Cleanup(ts.Close)
	return ts
}

func TestNewMemoClient_RejectsBadURL(t *testing.T) {
	_, err := NewMemoClient("ftp://example.com", nil)
	assert.Error(t, err)

	_, err = NewMemoClient("://", nil)
	assert.Error(t, err)

	c, err := NewMemoClient("http://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", c.BaseURL())
}

func TestMemoClient_AgainstRelay(t *testing.T) {
	ts := newRelay(t)
	ctx := context.Background()

	c, err := NewMemoClient(ts.URL, ts.Client())
	require.NoError(t, err)

	require.NoError(t, c.Health(ctx))

	sealed, err := cryptox.SealWithIterations([]byte("hello"), "1234", 1000)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "AB12", sealed))
	assert.ErrorIs(t, c.Put(ctx, "AB12", sealed), common.ErrCollision)

	ok, err := c.Head(ctx, "AB12")
	require.NoError(t, err)
	assert.True(t, ok)

	m, err := c.Get(ctx, "AB12")
	require.NoError(t, err)
	assert.Equal(t, sealed.Ciphertext, m.Ciphertext)
	assert.Equal(t, sealed.IV, m.IV)
	assert.Equal(t, sealed.Salt, m.Salt)
	assert.Equal(t, m.CreatedAt.Add(30*time.Minute), m.ExpiresAt)

	plaintext, err := cryptox.Open(m.Ciphertext, m.IV, m.Salt, m.KDF, "1234")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plaintext)

	_, err = c.Get(ctx, "AB12")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	ok, err = c.Head(ctx, "AB12")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoClient_APIErrors(t *testing.T) {
	ts := newRelay(t)
	ctx := context.Background()
	c, err := NewMemoClient(ts.URL, ts.Client())
	require.NoError(t, err)

	sealed := &cryptox.SealedMemo{Ciphertext: []byte("x"), IV: []byte("short"), Salt: make([]byte, 16)}
	err = c.Put(ctx, "AB12", sealed)
	require.Error(t, err)
	assert.True(t, IsAPIError(err, "invalid_iv"))

	_, err = c.Get(ctx, "A_B")
	assert.True(t, IsAPIError(err, "invalid_identifier"))

	_, err = c.Head(ctx, "A_B")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestMemoClient_HealthFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c, err := NewMemoClient(ts.URL, ts.Client())
	require.NoError(t, err)
	assert.ErrorIs(t, c.Health(context.Background()), common.ErrorUnavailable)

	ts.Close()
	assert.ErrorIs(t, c.Health(context.Background()), common.ErrorUnavailable)
}
