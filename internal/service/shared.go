package service

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/evotier/internal/domain"
)

// SharedManager serialises access to a TierSelectionManager so several
// goroutines (HTTP handlers, the snapshot loop) can share one instance.
type SharedManager struct {
	mu  sync.Mutex
	mgr *TierSelectionManager
}

func NewSharedManager(mgr *TierSelectionManager) *SharedManager {
	return &SharedManager{mgr: mgr}
}

func (s *SharedManager) SelectMutationTier(req SelectionRequest) (domain.MutationPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.SelectMutationTier(req)
}

func (s *SharedManager) RecordMutationResult(ctx context.Context, plan domain.MutationPlan, success bool, metrics *domain.OutcomeMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.RecordMutationResult(ctx, plan, success, metrics)
}

func (s *SharedManager) AdjustThresholdsManually(tier1, tier2 *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.AdjustThresholdsManually(tier1, tier2)
}

func (s *SharedManager) Thresholds() domain.ThresholdState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.Thresholds()
}

func (s *SharedManager) GetRecommendations() ManagerRecommendations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.GetRecommendations()
}

func (s *SharedManager) TierDistribution(samples int) map[domain.Tier]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.TierDistribution(samples)
}

func (s *SharedManager) ExportState() ManagerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr.ExportState()
}

func (s *SharedManager) ResetLearning(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mgr.ResetLearning(ctx)
}
