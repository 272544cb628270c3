package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/consolidator/core/model"
	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Plans      map[string]model.EascPlan
	FailEascs  map[string]bool
	AckResults map[string]bool
	sent       int
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Plans:      make(map[string]model.EascPlan),
		FailEascs:  make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// PublishPlan records the plan or returns an error if configured to fail.
func (m *MockPublisher) PublishPlan(runID string, plan model.EascPlan) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailEascs[plan.Easc] {
		return "", fmt.Errorf("publish failed")
	}
	m.Plans[plan.Easc] = plan
	m.sent++
	commandID := fmt.Sprintf("cmd-%s-%s", runID, plan.Easc)
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, coremqtt.ErrUnknownCommand
	}
	return ok, nil
}

// Published returns a copy of the recorded plans keyed by EASC.
func (m *MockPublisher) Published() map[string]model.EascPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.EascPlan, len(m.Plans))
	for k, v := range m.Plans {
		out[k] = v
	}
	return out
}

// Sent returns the number of plans published so far.
func (m *MockPublisher) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}
