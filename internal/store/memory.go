package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/google/uuid"
)

// MemoryStateStore is an in-process LearnerStateStore.
type MemoryStateStore struct {
	mu   sync.RWMutex
	blob []byte
}

var _ domain.LearnerStateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append([]byte(nil), blob...)
	return nil
}

func (s *MemoryStateStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.blob == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.blob...), nil
}

// MemoryDecisionStore is an in-process DecisionStore.
type MemoryDecisionStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.DecisionRecord
}

var _ domain.DecisionStore = (*MemoryDecisionStore)(nil)

func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{records: make(map[uuid.UUID]*domain.DecisionRecord)}
}

func (s *MemoryDecisionStore) Create(_ context.Context, r *domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.PlanID]; exists {
		return ErrConflict
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	s.records[r.PlanID] = &cp
	return nil
}

func (s *MemoryDecisionStore) GetByID(_ context.Context, planID uuid.UUID) (*domain.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[planID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryDecisionStore) Resolve(_ context.Context, planID uuid.UUID, success bool, fitnessDelta *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[planID]
	if !ok {
		return ErrNotFound
	}
	if r.Resolved() {
		return ErrConflict
	}
	now := time.Now().UTC()
	r.Success = &success
	if fitnessDelta != nil {
		d := *fitnessDelta
		r.FitnessDelta = &d
	}
	r.ResolvedAt = &now
	return nil
}

// ListRecent returns the newest records first.
func (s *MemoryDecisionStore) ListRecent(_ context.Context, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = defaultDecisionLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DecisionRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemorySnapshotStore is an in-process SnapshotStore.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots []domain.StateSnapshot
}

var _ domain.SnapshotStore = (*MemorySnapshotStore)(nil)

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (s *MemorySnapshotStore) Create(_ context.Context, snap *domain.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.snapshots {
		if existing.ID == snap.ID {
			return ErrConflict
		}
	}
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

func (s *MemorySnapshotStore) Latest(_ context.Context) (*domain.StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return nil, ErrNotFound
	}
	latest := s.snapshots[0]
	for _, snap := range s.snapshots[1:] {
		if !snap.CreatedAt.Before(latest.CreatedAt) {
			latest = snap
		}
	}
	return &latest, nil
}

// MemoryPriceSource serves close series registered in process.
type MemoryPriceSource struct {
	mu     sync.RWMutex
	series map[string][]float64
}

var _ domain.PriceSeriesSource = (*MemoryPriceSource)(nil)

func NewMemoryPriceSource() *MemoryPriceSource {
	return &MemoryPriceSource{series: make(map[string][]float64)}
}

func (s *MemoryPriceSource) Put(symbol string, closes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[symbol] = append([]float64(nil), closes...)
}

// CloseSeries returns up to limit of the most recent closes, oldest first.
func (s *MemoryPriceSource) CloseSeries(_ context.Context, symbol string, limit int) (*domain.PriceSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	closes, ok := s.series[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	if limit > 0 && len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	return &domain.PriceSeries{Symbol: symbol, Close: append([]float64(nil), closes...)}, nil
}
