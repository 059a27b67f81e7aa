// Package synclock keeps a user from running two mailbox syncs at once.
package synclock

import (
	"context"
	"errors"
	"sync"
)

var ErrSyncInProgress = errors.New("a sync is already running for this user")

// Locker hands out per-user sync leases. The returned release func must be
// called once the sync ends.
type Locker interface {
	Acquire(ctx context.Context, userID int64) (release func(), err error)
}

// Memory is a Locker for a single process.
type Memory struct {
	mu     sync.Mutex
	active map[int64]struct{}
}

func NewMemory() *Memory {
	return &Memory{active: make(map[int64]struct{})}
}

func (m *Memory) Acquire(_ context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[userID]; busy {
		return nil, ErrSyncInProgress
	}
	m.active[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.active, userID)
			m.mu.Unlock()
		})
	}, nil
}
