package cells

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestLocator(t *testing.T) (*Locator, *memos.InMemoryRepository, *fakeClock) {
	t.Helper()
	repo := memos.NewInMemoryRepository()
	clock := &fakeClock{now: t0}
	l := NewLocator(repo, WithClock(clock.Now))
	t.Cleanup(l.Stop)
	return l, repo, clock
}

var (
	iv   = make([]byte, models.IVSize)
	salt = make([]byte, models.SaltSize)
)

func TestCell_CreateReadBurns(t *testing.T) {
	l, _, _ := newTestLocator(t)
	ctx := context.Background()

	m, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)
	assert.Equal(t, t0, m.CreatedAt)
	assert.Equal(t, t0.Add(models.MemoTTL), m.ExpiresAt)
	assert.Equal(t, 1, l.Timers().Pending())

	got, err := l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("ct"), got.Ciphertext)
	assert.Equal(t, 0, l.Timers().Pending())

	_, err = l.Resolve("AB12").Read(ctx)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, l.ActiveSlots())
}

func TestCell_CreateCollisionKeepsOriginal(t *testing.T) {
	l, _, clock := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("first"), iv, salt, nil)
	require.NoError(t, err)

	clock.Set(t0.Add(time.Minute))
	_, err = l.Resolve("AB12").Create(ctx, []byte("second"), iv, salt, nil)
	assert.ErrorIs(t, err, common.ErrCollision)

	got, err := l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got.Ciphertext)
	assert.Equal(t, t0, got.CreatedAt)
}

func TestCell_PeekDoesNotConsume(t *testing.T) {
	l, _, _ := newTestLocator(t)
	ctx := context.Background()

	present, err := l.Resolve("AB12").Peek(ctx)
	require.NoError(t, err)
	assert.False(t, present)

	_, err = l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		present, err = l.Resolve("AB12").Peek(ctx)
		require.NoError(t, err)
		assert.True(t, present)
	}

	_, err = l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)

	present, err = l.Resolve("AB12").Peek(ctx)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestCell_ExactlyOnceUnderConcurrentReads(t *testing.T) {
	l, _, _ := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)

	const readers = 64
	var (
		wg       sync.WaitGroup
		found    atomic.Int32
		notFound atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.Resolve("AB12").Read(ctx)
			switch {
			case err == nil:
				found.Add(1)
			case errors.Is(err, common.ErrorNotFound):
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), found.Load())
	assert.Equal(t, int32(readers-1), notFound.Load())
	assert.Equal(t, 0, l.ActiveSlots())
}

func TestCell_ConcurrentCreatesSingleWinner(t *testing.T) {
	l, _, _ := newTestLocator(t)
	ctx := context.Background()

	const writers = 32
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		collide atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, common.ErrCollision):
				collide.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(writers-1), collide.Load())
}

func TestCell_TTLBoundaryWithoutCallback(t *testing.T) {
	l, repo, clock := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)

	clock.Set(t0.Add(models.MemoTTL - time.Second))
	present, err := l.Resolve("AB12").Peek(ctx)
	require.NoError(t, err)
	assert.True(t, present)

	clock.Set(t0.Add(models.MemoTTL))
	present, err = l.Resolve("AB12").Peek(ctx)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, 0, l.Timers().Pending())

	_, err = l.Resolve("AB12").Read(ctx)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCell_ReadAfterExpiryIsNotFound(t *testing.T) {
	l, repo, clock := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)

	clock.Set(t0.Add(models.MemoTTL + time.Hour))
	_, err = l.Resolve("AB12").Read(ctx)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, repo.Len())
}

func TestCell_ExpireIsIdempotent(t *testing.T) {
	l, repo, _ := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)

	require.NoError(t, l.Resolve("AB12").Expire(ctx, t0.Add(time.Minute)))
	assert.Equal(t, 1, repo.Len())

	firedAt := t0.Add(models.MemoTTL)
	require.NoError(t, l.Resolve("AB12").Expire(ctx, firedAt))
	require.NoError(t, l.Resolve("AB12").Expire(ctx, firedAt))
	assert.Equal(t, 0, repo.Len())
}

func TestCell_StaleExpireSparesReplacement(t *testing.T) {
	l, _, clock := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("old"), iv, salt, nil)
	require.NoError(t, err)
	_, err = l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)

	clock.Set(t0.Add(10 * time.Minute))
	_, err = l.Resolve("AB12").Create(ctx, []byte("new"), iv, salt, nil)
	require.NoError(t, err)

	// A callback for the first memo delivered at its expiry time.
	require.NoError(t, l.Resolve("AB12").Expire(ctx, t0.Add(models.MemoTTL)))

	got, err := l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got.Ciphertext)
}

func TestCell_ReuseAfterBurnAndExpiry(t *testing.T) {
	l, _, clock := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("one"), iv, salt, nil)
	require.NoError(t, err)
	_, err = l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)

	t1 := t0.Add(5 * time.Minute)
	clock.Set(t1)
	m, err := l.Resolve("AB12").Create(ctx, []byte("two"), iv, salt, nil)
	require.NoError(t, err)
	assert.Equal(t, t1, m.CreatedAt)
	assert.Equal(t, t1.Add(models.MemoTTL), m.ExpiresAt)

	t2 := t1.Add(models.MemoTTL)
	clock.Set(t2)
	m, err = l.Resolve("AB12").Create(ctx, []byte("three"), iv, salt, nil)
	require.NoError(t, err)
	assert.Equal(t, t2, m.CreatedAt)

	got, err := l.Resolve("AB12").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got.Ciphertext)
}

func TestCell_DistinctIDsDoNotAlias(t *testing.T) {
	l, _, _ := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("a"), iv, salt, nil)
	require.NoError(t, err)
	_, err = l.Resolve("ab12").Create(ctx, []byte("b"), iv, salt, nil)
	require.NoError(t, err)

	got, err := l.Resolve("ab12").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got.Ciphertext)

	present, err := l.Resolve("AB12").Peek(ctx)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestLocator_AcquireHonoursContext(t *testing.T) {
	l, _, _ := newTestLocator(t)

	release, err := l.acquire(context.Background(), "AB12")
	require.NoError(t, err)
	assert.Equal(t, 1, l.ActiveSlots())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Resolve("AB12").Peek(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A different identifier is not blocked.
	present, err := l.Resolve("CD34").Peek(context.Background())
	require.NoError(t, err)
	assert.False(t, present)

	release()
	release()
	assert.Equal(t, 0, l.ActiveSlots())
}

func TestLocator_ExpiredCallbackDeletes(t *testing.T) {
	l, repo, clock := newTestLocator(t)
	ctx := context.Background()

	_, err := l.Resolve("AB12").Create(ctx, []byte("ct"), iv, salt, nil)
	require.NoError(t, err)

	clock.Set(t0.Add(models.MemoTTL))
	l.expired("AB12")
	assert.Equal(t, 0, repo.Len())
}

type failingRepo struct {
	memos.Repository
	err error
}

func (f failingRepo) DeleteIfExpired(context.Context, string, time.Time) (bool, error) {
	return false, f.err
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (r *recordingLogger) Debug(context.Context, string, ...any) {}
func (r *recordingLogger) Info(context.Context, string, ...any)  {}
func (r *recordingLogger) Error(context.Context, string, ...any) {}
func (r *recordingLogger) Warn(_ context.Context, msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}
func (r *recordingLogger) With(...any) logging.Logger { return r }

func TestLocator_ExpiredCallbackFailureIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	repo := failingRepo{Repository: memos.NewInMemoryRepository(), err: errors.New("store down")}
	l := NewLocator(repo, WithLogger(logger))
	defer l.Stop()

	l.expired("AB12")
	assert.Equal(t, []string{"expiry callback failed"}, logger.warns)
}
