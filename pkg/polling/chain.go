package polling

import (
	"context"
	"sync"
	"time"
)

// ChainStatus is the state of one poll chain.
//
// A chain moves pending -> waiting -> fetching, then either back through
// retrying (still loading, or the fetch failed) or to one of the terminal
// states: done, gave_up or cancelled.
type ChainStatus string

const (
	ChainStatusPending   ChainStatus = "pending"
	ChainStatusWaiting   ChainStatus = "waiting"
	ChainStatusFetching  ChainStatus = "fetching"
	ChainStatusRetrying  ChainStatus = "retrying"
	ChainStatusDone      ChainStatus = "done"
	ChainStatusGaveUp    ChainStatus = "gave_up"
	ChainStatusCancelled ChainStatus = "cancelled"
)

// IsTerminal reports whether the chain has stopped.
func (s ChainStatus) IsTerminal() bool {
	return s == ChainStatusDone || s == ChainStatusGaveUp || s == ChainStatusCancelled
}

// chainState holds the runtime state of a poll chain.
type chainState struct {
	id         string
	kind       string
	collection string
	projectID  string
	entityID   string
	cancel     context.CancelFunc

	mu          sync.RWMutex
	status      ChainStatus
	attempt     int
	startedAt   time.Time
	updatedAt   time.Time
	completedAt *time.Time
	lastErr     error
}

func (c *chainState) setStatus(status ChainStatus, attempt int, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
	c.attempt = attempt
	c.updatedAt = now
	if status.IsTerminal() {
		c.completedAt = &now
	}
}

func (c *chainState) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *chainState) getStatus() ChainStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// snapshot returns an immutable copy of the chain state.
func (c *chainState) snapshot() ChainSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errMsg string
	if c.lastErr != nil {
		errMsg = c.lastErr.Error()
	}

	return ChainSnapshot{
		ID:          c.id,
		Kind:        c.kind,
		Collection:  c.collection,
		ProjectID:   c.projectID,
		EntityID:    c.entityID,
		Status:      c.status,
		Attempt:     c.attempt,
		StartedAt:   c.startedAt,
		UpdatedAt:   c.updatedAt,
		CompletedAt: c.completedAt,
		LastError:   errMsg,
	}
}

// ChainSnapshot is an immutable view of a poll chain for serialization.
type ChainSnapshot struct {
	ID          string      `json:"id"`
	Kind        string      `json:"kind"`
	Collection  string      `json:"collection"`
	ProjectID   string      `json:"projectId"`
	EntityID    string      `json:"entityId"`
	Status      ChainStatus `json:"status"`
	Attempt     int         `json:"attempt"`
	StartedAt   time.Time   `json:"startedAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
}
