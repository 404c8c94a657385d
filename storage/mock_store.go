package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

// MockStore is an in-memory DataStore for tests: call tracking plus
// error injection, in the shape of storage/mock_store.go
// (Quentinlac-poly).
type MockStore struct {
	mu sync.Mutex

	Activities    map[string]models.Activity
	ProcessedTxes map[string]bool

	Calls       map[string]int
	ErrorOnNext map[string]error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		Activities:    make(map[string]models.Activity),
		ProcessedTxes: make(map[string]bool),
		Calls:         make(map[string]int),
		ErrorOnNext:   make(map[string]error),
	}
}

func (m *MockStore) trackCall(name string) error {
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

// Seed inserts an activity directly, bypassing call tracking, for test
// setup.
func (m *MockStore) Seed(activity models.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Activities[activity.ID] = activity
}

func (m *MockStore) GetActivity(ctx context.Context, activityID string) (*models.Activity, error) {
	if err := m.trackCall("GetActivity"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Activities[activityID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// CompareAndSetMarker round-trips the marker through the same
// ToSentinel/MarkerFromSentinel encoding the Postgres store persists, so
// the two stores agree on what a "current state" comparison means even
// though this one never touches a wire format.
func (m *MockStore) CompareAndSetMarker(ctx context.Context, activityID string, expected models.MarkerState, next models.Marker) (bool, error) {
	if err := m.trackCall("CompareAndSetMarker"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Activities[activityID]
	if !ok {
		return false, nil
	}
	if models.MarkerFromSentinel(a.Marker.ToSentinel()).State != expected {
		return false, nil
	}
	a.Marker = models.MarkerFromSentinel(next.ToSentinel())
	m.Activities[activityID] = a
	return true, nil
}

func (m *MockStore) MarkSkippedByAggregator(ctx context.Context, activityID string) error {
	if err := m.trackCall("MarkSkippedByAggregator"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Activities[activityID]
	if !ok {
		return nil
	}
	sentinel := models.Marker{State: models.MarkerSkipped, At: time.Now()}.ToSentinel()
	a.Marker = models.MarkerFromSentinel(sentinel)
	m.Activities[activityID] = a
	return nil
}

func (m *MockStore) HasProcessedTxHash(ctx context.Context, txHash string) (bool, error) {
	if err := m.trackCall("HasProcessedTxHash"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProcessedTxes[txHash], nil
}

func (m *MockStore) RecordProcessedTxHash(ctx context.Context, txHash string) error {
	if err := m.trackCall("RecordProcessedTxHash"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessedTxes[txHash] = true
	return nil
}
