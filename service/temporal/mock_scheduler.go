package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	interval  time.Duration
	exists    bool
	ensureErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// EnsureRequestSyncSchedule records that the sync schedule was created or
// updated.
func (m *MockScheduler) EnsureRequestSyncSchedule(ctx context.Context, interval time.Duration) error {
	if m.ensureErr != nil {
		return m.ensureErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	m.interval = interval
	return nil
}

// DeleteRequestSyncSchedule records that the sync schedule was deleted.
func (m *MockScheduler) DeleteRequestSyncSchedule(ctx context.Context) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return fmt.Errorf("schedule %q not found", requestSyncScheduleID)
	}
	m.exists = false
	return nil
}

// SetEnsureError makes EnsureRequestSyncSchedule return an error.
func (m *MockScheduler) SetEnsureError(err error) {
	m.ensureErr = err
}

// SetDeleteError makes DeleteRequestSyncSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}

// ScheduleExists reports whether the sync schedule exists.
func (m *MockScheduler) ScheduleExists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists
}

// ScheduleInterval returns the configured interval.
func (m *MockScheduler) ScheduleInterval() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval, m.exists
}

// Reset clears schedule state and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = false
	m.interval = 0
	m.ensureErr = nil
	m.deleteErr = nil
}
