package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSnapshotInterval = 15 * time.Minute
	snapshotTimeout         = 30 * time.Second
)

// SnapshotService periodically checkpoints the selection engine state.
type SnapshotService struct {
	manager       *SharedManager
	snapshotStore domain.SnapshotStore
	logger        *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSnapshotService(manager *SharedManager, ss domain.SnapshotStore, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		manager:       manager,
		snapshotStore: ss,
		logger:        logger,
		interval:      defaultSnapshotInterval,
		stopCh:        make(chan struct{}),
	}
}

func (s *SnapshotService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the snapshot loop in a background goroutine.
func (s *SnapshotService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("snapshot service started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error("state snapshot failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("snapshot service stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the snapshot loop.
func (s *SnapshotService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce exports the current state and stores it. The manager lock is
// released before the store is written.
func (s *SnapshotService) RunOnce(ctx context.Context) (*domain.StateSnapshot, error) {
	state := s.manager.ExportState()

	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	snap := &domain.StateSnapshot{
		ID:        uuid.New(),
		State:     blob,
		CreatedAt: state.ExportedAt,
	}
	if err := s.snapshotStore.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	s.logger.Debug("state snapshot stored",
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int("bytes", len(blob)))
	return snap, nil
}
