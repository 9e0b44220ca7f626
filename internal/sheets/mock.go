package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/condo-quotas/internal/quota"
)

// MockPublisher records Publish calls for tests.
type MockPublisher struct {
	PublishFunc   func(ctx context.Context, s *quota.Schedule, title string) (string, error)
	Calls         []PublishCall
	SpreadsheetID string
	mu            sync.Mutex
}

// PublishCall represents a single call to Publish.
type PublishCall struct {
	Error    error
	Schedule *quota.Schedule
	Title    string
}

// Publish implements SchedulePublisher.
func (m *MockPublisher) Publish(ctx context.Context, s *quota.Schedule, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.SpreadsheetID
	var err error
	if m.PublishFunc != nil {
		id, err = m.PublishFunc(ctx, s, title)
	}
	m.Calls = append(m.Calls, PublishCall{Schedule: s, Title: title, Error: err})
	return id, err
}

// CallCount returns the number of Publish calls.
func (m *MockPublisher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
