package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Veraticus/condo-quotas/internal/common"
)

// Memory is an in-process Locker. Each key is a one-slot channel so waiting honours contexts.
// A slot is dropped once nobody holds or waits for it.
type Memory struct {
	slots map[string]*memorySlot
	mu    sync.Mutex
}

type memorySlot struct {
	ch   chan struct{}
	refs int
}

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*memorySlot)}
}

func (m *Memory) join(key string) *memorySlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &memorySlot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *Memory) leave(key string, s *memorySlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Acquire waits for the key until ctx is done. Only an expired deadline is reported as
// ErrLockTimeout; cancellation returns the context error.
func (m *Memory) Acquire(ctx context.Context, key string) (Lock, error) {
	s := m.join(key)
	select {
	case s.ch <- struct{}{}:
		return &memoryLock{owner: m, key: key, slot: s}, nil
	case <-ctx.Done():
		m.leave(key, s)
		return nil, waitError(key, ctx.Err())
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

type memoryLock struct {
	owner *Memory
	slot  *memorySlot
	key   string
	once  sync.Once
}

func (l *memoryLock) Release(context.Context) error {
	l.once.Do(func() {
		<-l.slot.ch
		l.owner.leave(l.key, l.slot)
	})
	return nil
}

func waitError(key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", common.ErrLockTimeout, key, err)
	}
	return fmt.Errorf("waiting for lock %s: %w", key, err)
}
