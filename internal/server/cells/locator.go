package cells

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
)

// expireTimeout bounds one timer-driven expiry against the store.
const expireTimeout = 10 * time.Second

type slot struct {
	sem  chan struct{}
	refs int
}

// Locator resolves identifiers to cells and owns their serialization slots.
// Slots exist only while some operation holds or waits for them.
type Locator struct {
	repo   memos.Repository
	timers *Timers
	clock  func() time.Time
	logger logging.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

type Option func(*Locator)

// WithClock overrides the time source used for acceptance and expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(l *Locator) { l.clock = clock }
}

// WithLogger sets the logger used for expiry failures.
func WithLogger(logger logging.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// NewLocator builds a locator over repo. It creates its own Timers whose
// callbacks expire the matching cell; call Stop on shutdown.
func NewLocator(repo memos.Repository, opts ...Option) *Locator {
	l := &Locator{
		repo:   repo,
		clock:  time.Now,
		logger: logging.Nop(),
		slots:  make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.timers = NewTimers(l.expired)
	return l
}

// Resolve returns the cell for id. Equal ids always share one slot.
func (l *Locator) Resolve(id string) *Cell {
	return &Cell{id: id, loc: l}
}

// Timers exposes the expiry scheduler.
func (l *Locator) Timers() *Timers {
	return l.timers
}

// Stop cancels pending expiry timers and waits for running ones.
func (l *Locator) Stop() {
	l.timers.Stop()
}

// ActiveSlots reports how many identifiers currently have a slot.
func (l *Locator) ActiveSlots() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// acquire blocks until the slot for id is held or ctx is done.
func (l *Locator) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		l.leave(id, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			l.leave(id, s)
		})
	}, nil
}

func (l *Locator) leave(id string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

// expired is the timer callback for id.
func (l *Locator) expired(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	if err := l.Resolve(id).Expire(ctx, l.clock()); err != nil {
		l.logger.Warn(ctx, "expiry callback failed", "id", id, "error", err)
	}
}
