// Package polling submits asynchronous server-side jobs and polls them until
// they finish.
//
// A submission writes the server's immediate answer into the entity store. If
// that answer is still loading, a poll chain re-fetches the entity every
// Interval until it stops loading or MaxAttempts fetches have been made. Each
// chain runs in its own goroutine; attempts within a chain are sequential and
// chains are independent of each other.
package polling

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/retry"
	"github.com/trace-app/trace-dashboard/pkg/store"
)

// maxFinishedChains bounds how many terminal chains are kept for inspection.
const maxFinishedChains = 200

// Config controls poll chains.
type Config struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultConfig returns 10 attempts, 5 seconds apart.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		Interval:    5 * time.Second,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the poll configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// pollFunc performs one fetch. It reports whether the entity is still loading.
type pollFunc func(ctx context.Context) (loading bool, err error)

// Engine owns the poll chains of one dashboard session.
type Engine struct {
	store  *store.Store
	cfg    Config
	clock  Clock
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	chains   map[string]*chainState
	order    []string
	finished []string
	active   int
	idle     chan struct{}
	closed   bool
	onUpdate func(ChainSnapshot)
}

// New creates an engine writing into st.
func New(st *store.Store, logger *zap.Logger, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:  st,
		cfg:    DefaultConfig(),
		clock:  realClock{},
		logger: logger.Named("polling"),
		ctx:    ctx,
		cancel: cancel,
		chains: make(map[string]*chainState),
		idle:   make(chan struct{}),
	}
	close(e.idle)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes into.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Config returns the engine's poll configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetOnUpdate registers a callback invoked on every chain transition.
// The callback runs outside the engine lock.
func (e *Engine) SetOnUpdate(callback func(ChainSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = callback
}

// start launches a poll chain for one entity.
func (e *Engine) start(kind, collection, projectID, entityID string, poll pollFunc) string {
	ctx, cancel := context.WithCancel(e.ctx)
	now := e.clock.Now()
	c := &chainState{
		id:         uuid.NewString(),
		kind:       kind,
		collection: collection,
		projectID:  projectID,
		entityID:   entityID,
		cancel:     cancel,
		status:     ChainStatusPending,
		startedAt:  now,
		updatedAt:  now,
	}

	e.mu.Lock()
	e.chains[c.id] = c
	e.order = append(e.order, c.id)
	if e.active == 0 {
		e.idle = make(chan struct{})
	}
	e.active++
	e.mu.Unlock()

	e.logger.Debug("Starting poll chain",
		zap.String("chain_id", c.id),
		zap.String("kind", kind),
		zap.String("project_id", projectID),
		zap.String("entity_id", entityID))
	e.notify(c)

	go e.run(ctx, c, poll)
	return c.id
}

// run drives one chain until it completes, gives up or is cancelled.
func (e *Engine) run(ctx context.Context, c *chainState, poll pollFunc) {
	defer e.finish(c)
	defer c.cancel()

	for attempt := 0; ; attempt++ {
		if attempt >= e.cfg.MaxAttempts {
			e.logger.Warn("Polling stopped",
				zap.String("chain_id", c.id),
				zap.String("kind", c.kind),
				zap.String("project_id", c.projectID),
				zap.String("entity_id", c.entityID),
				zap.Int("attempts", attempt))
			e.transition(c, ChainStatusGaveUp, attempt)
			return
		}

		e.transition(c, ChainStatusWaiting, attempt)
		select {
		case <-ctx.Done():
			e.transition(c, ChainStatusCancelled, attempt)
			return
		case <-e.clock.After(e.cfg.Interval):
		}

		e.transition(c, ChainStatusFetching, attempt)
		loading, err := poll(ctx)
		if ctx.Err() != nil {
			e.transition(c, ChainStatusCancelled, attempt)
			return
		}

		if err != nil {
			c.setError(err)
			e.logger.Warn("Poll fetch failed",
				zap.String("chain_id", c.id),
				zap.String("kind", c.kind),
				zap.String("entity_id", c.entityID),
				zap.Int("attempt", attempt),
				zap.Bool("transient", retry.IsRetryable(err)),
				zap.String("error_type", retry.Classify(err)),
				zap.Error(err))
		} else if !loading {
			e.transition(c, ChainStatusDone, attempt)
			return
		}

		e.transition(c, ChainStatusRetrying, attempt+1)
	}
}

func (e *Engine) transition(c *chainState, status ChainStatus, attempt int) {
	c.setStatus(status, attempt, e.clock.Now())
	e.notify(c)
}

func (e *Engine) notify(c *chainState) {
	e.mu.Lock()
	callback := e.onUpdate
	e.mu.Unlock()
	if callback != nil {
		callback(c.snapshot())
	}
}

// finish marks a chain inactive, prunes old terminal chains and wakes waiters.
func (e *Engine) finish(c *chainState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.finished = append(e.finished, c.id)
	for len(e.finished) > maxFinishedChains {
		oldest := e.finished[0]
		e.finished = e.finished[1:]
		delete(e.chains, oldest)
		e.order = slices.DeleteFunc(e.order, func(id string) bool { return id == oldest })
	}

	e.active--
	if e.active == 0 {
		close(e.idle)
	}
}

// Chains returns snapshots of active and recently finished chains, oldest first.
func (e *Engine) Chains() []ChainSnapshot {
	e.mu.Lock()
	chains := make([]*chainState, 0, len(e.order))
	for _, id := range e.order {
		chains = append(chains, e.chains[id])
	}
	e.mu.Unlock()

	out := make([]ChainSnapshot, len(chains))
	for i, c := range chains {
		out[i] = c.snapshot()
	}
	return out
}

// ActiveChains counts non-terminal chains for one entity.
func (e *Engine) ActiveChains(projectID, entityID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, c := range e.chains {
		if c.projectID == projectID && c.entityID == entityID && !c.getStatus().IsTerminal() {
			n++
		}
	}
	return n
}

// ActiveCount returns the number of running chains.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// CancelProject stops every chain of one project. Entities keep their last
// written state.
func (e *Engine) CancelProject(projectID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, c := range e.chains {
		if c.projectID == projectID && !c.getStatus().IsTerminal() {
			c.cancel()
			n++
		}
	}
	if n > 0 {
		e.logger.Info("Cancelled poll chains",
			zap.String("project_id", projectID),
			zap.Int("count", n))
	}
	return n
}

// Wait blocks until no chain is active or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every chain and waits for them to stop.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	return e.Wait(ctx)
}
