package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/store"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func ptr[T any](v T) *T {
	return &v
}

// mockStateStore implements domain.LearnerStateStore for testing.
type mockStateStore struct {
	mu    sync.Mutex
	blob  []byte
	saves int
}

func (m *mockStateStore) Save(ctx context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	m.saves++
	return nil
}

func (m *mockStateStore) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), m.blob...), nil
}

// failingStateStore fails every call.
type failingStateStore struct{}

func (failingStateStore) Save(ctx context.Context, blob []byte) error {
	return errors.New("disk full")
}

func (failingStateStore) Load(ctx context.Context) ([]byte, error) {
	return nil, errors.New("connection refused")
}

// mockSnapshotStore implements domain.SnapshotStore for testing.
type mockSnapshotStore struct {
	snapshots []domain.StateSnapshot
	err       error
}

func (m *mockSnapshotStore) Create(ctx context.Context, s *domain.StateSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.snapshots = append(m.snapshots, *s)
	return nil
}

func (m *mockSnapshotStore) Latest(ctx context.Context) (*domain.StateSnapshot, error) {
	if len(m.snapshots) == 0 {
		return nil, store.ErrNotFound
	}
	s := m.snapshots[len(m.snapshots)-1]
	return &s, nil
}

func planFor(tier domain.Tier, strategyID string) domain.MutationPlan {
	return domain.MutationPlan{
		Tier:         tier,
		MutationType: domain.MutationTypeFor(domain.IntentAdjustParameter, tier),
		Config:       map[string]any{"strategy_id": strategyID, "tier": tier.Number()},
	}
}
