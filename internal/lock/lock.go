// Package lock serializes finalization runs that share a key.
package lock

import (
	"context"
	"fmt"
)

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive locks by key. Acquire blocks until the lock is held, the context
// is done, or the locker gives up with common.ErrLockTimeout.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// BudgetKey is the lock key of a budget finalization.
func BudgetKey(budgetID int64) string {
	return fmt.Sprintf("budget:%d", budgetID)
}

// StandaloneKey is the lock key of a standalone quota creation.
func StandaloneKey(condominiumID int64, title string) string {
	return fmt.Sprintf("standalone:%d:%s", condominiumID, title)
}
